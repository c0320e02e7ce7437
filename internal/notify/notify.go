// Package notify turns state changes into outbox rows and hands them to the queue.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"gorm.io/gorm"
)

// DefaultEnqueueTimeout bounds how long Notify may wait on a full queue.
const DefaultEnqueueTimeout = 2 * time.Second

// Dispatcher is a best-effort notifier: Notify never fails its caller.
type Dispatcher struct {
	db          *gorm.DB
	queue       queue.Queue
	metrics     *metrics.Metrics
	logger      *slog.Logger
	frontendURL string
	timeout     time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(db *gorm.DB, q queue.Queue, m *metrics.Metrics, logger *slog.Logger, frontendURL string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	return &Dispatcher{
		db:          db,
		queue:       q,
		metrics:     m,
		logger:      logger,
		frontendURL: frontendURL,
		timeout:     timeout,
	}
}

// Notify stores a pending notification and enqueues it for delivery.
// Errors are logged and counted, never returned.
func (d *Dispatcher) Notify(ctx context.Context, kind models.NotificationKind, recipient *models.User, data map[string]interface{}) {
	// The triggering request may finish before we do; keep its values, drop its cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	n, err := Render(kind, recipient, data, d.frontendURL)
	if err != nil {
		d.logger.Error("Failed to render notification", "kind", kind, "error", err)
		d.metrics.NotificationFailed(string(kind), "render")
		return
	}

	if err := d.db.WithContext(ctx).Create(n).Error; err != nil {
		d.logger.Error("Failed to store notification", "kind", kind, "recipient", n.Recipient, "error", err)
		d.metrics.NotificationFailed(string(kind), "store")
		return
	}

	if err := d.queue.Enqueue(ctx, n); err != nil {
		d.logger.Error("Failed to enqueue notification", "notification_id", n.ID, "kind", kind, "error", err)
		d.metrics.NotificationFailed(string(kind), "enqueue")
		d.db.Model(n).Updates(map[string]interface{}{
			"status": models.NotificationStatusFailed,
			"error":  err.Error(),
		})
		return
	}

	d.metrics.NotificationQueued(string(kind))
	d.logger.Debug("Notification queued", "notification_id", n.ID, "kind", kind, "recipient", n.Recipient)
}
