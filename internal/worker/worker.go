// Package worker delivers queued notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gatherly-dev/gatherly/internal/mailer"
	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// Options tunes delivery. Zero values fall back to defaults.
type Options struct {
	MaxWorkers  int
	SendTimeout time.Duration
	MaxRetries  uint64
	RetryBase   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 4
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	return o
}

// Worker processes notifications from the queue
type Worker struct {
	db        *gorm.DB
	queue     queue.Queue
	sender    mailer.Sender
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
	semaphore chan struct{}
	wg        sync.WaitGroup
	backlog   []models.Notification
}

// New creates a new worker instance
func New(db *gorm.DB, q queue.Queue, sender mailer.Sender, m *metrics.Metrics, logger *slog.Logger, opts Options) *Worker {
	opts = opts.withDefaults()
	return &Worker{
		db:        db,
		queue:     q,
		sender:    sender,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		semaphore: make(chan struct{}, opts.MaxWorkers),
	}
}

// Start begins processing notifications until ctx is cancelled or the queue closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started", "max_concurrent_deliveries", w.opts.MaxWorkers)

	// The backlog may exceed the queue buffer, so it is fed in while the
	// loop below is already draining.
	if backlog := w.backlog; len(backlog) > 0 {
		w.backlog = nil
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.requeue(ctx, backlog)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down, waiting for deliveries to complete")
			w.wg.Wait()
			w.logger.Info("All deliveries completed, worker stopped")
			return ctx.Err()
		default:
			n, err := w.queue.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, queue.ErrClosed) {
					w.wg.Wait()
					return nil
				}
				// DeadlineExceeded means nothing arrived during the poll
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Error("Failed to dequeue notification", "error", err)
				time.Sleep(time.Second)
				continue
			}
			if n == nil {
				continue
			}

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(n *models.Notification) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()
					w.Deliver(ctx, n)
				}(n)
			case <-ctx.Done():
				w.logger.Info("Context cancelled while waiting for worker slot")
				w.wg.Wait()
				return ctx.Err()
			}
		}
	}
}

// Deliver sends one notification with retries and records the outcome on its row.
func (w *Worker) Deliver(ctx context.Context, n *models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic recovered in Deliver", "notification_id", n.ID, "panic", r)
			w.markFailed(n, fmt.Sprintf("delivery panicked: %v", r))
		}
	}()

	msg := mailer.Message{To: n.Recipient, Subject: n.Subject, Body: n.Body}
	backoff := retry.WithMaxRetries(w.opts.MaxRetries, retry.NewExponential(w.opts.RetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n.Attempts++
		sendCtx, cancel := context.WithTimeout(ctx, w.opts.SendTimeout)
		defer cancel()
		if err := w.sender.Send(sendCtx, msg); err != nil {
			w.logger.Warn("Notification send attempt failed",
				"notification_id", n.ID, "attempt", n.Attempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		w.logger.Error("Notification delivery failed", "notification_id", n.ID, "kind", n.Kind, "error", err)
		w.markFailed(n, err.Error())
		return
	}

	now := time.Now().UTC()
	n.Status = models.NotificationStatusSent
	n.SentAt = &now
	n.Error = ""
	if err := w.db.Model(&models.Notification{}).Where("id = ?", n.ID).Updates(map[string]interface{}{
		"status":   n.Status,
		"attempts": n.Attempts,
		"sent_at":  now,
		"error":    "",
	}).Error; err != nil {
		w.logger.Error("Failed to record delivery", "notification_id", n.ID, "error", err)
	}
	w.metrics.NotificationSent(string(n.Kind))
	w.logger.Info("Notification sent", "notification_id", n.ID, "kind", n.Kind, "recipient", n.Recipient)
}

func (w *Worker) markFailed(n *models.Notification, msg string) {
	n.Status = models.NotificationStatusFailed
	n.Error = msg
	if err := w.db.Model(&models.Notification{}).Where("id = ?", n.ID).Updates(map[string]interface{}{
		"status":   n.Status,
		"attempts": n.Attempts,
		"error":    msg,
	}).Error; err != nil {
		w.logger.Error("Failed to record delivery failure", "notification_id", n.ID, "error", err)
	}
	w.metrics.NotificationFailed(string(n.Kind), "send")
}

// LoadBacklog reads rows still pending, e.g. after a restart lost the
// in-memory queue. Start enqueues them once it is consuming. It returns the
// number of rows found.
func (w *Worker) LoadBacklog(ctx context.Context) (int, error) {
	var pending []models.Notification
	if err := w.db.WithContext(ctx).
		Where("status = ?", models.NotificationStatusPending).
		Order("created_at").
		Find(&pending).Error; err != nil {
		return 0, err
	}
	w.backlog = pending
	return len(pending), nil
}

func (w *Worker) requeue(ctx context.Context, backlog []models.Notification) {
	for i := range backlog {
		if err := w.queue.Enqueue(ctx, &backlog[i]); err != nil {
			w.logger.Warn("Stopped requeueing pending notifications",
				"requeued", i, "remaining", len(backlog)-i, "error", err)
			return
		}
	}
	w.logger.Info("Requeued pending notifications", "count", len(backlog))
}
