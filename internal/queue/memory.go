package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
)

// MemoryQueue implements an in-process notification queue
type MemoryQueue struct {
	ch     chan *models.Notification
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	slog.Info("Initialized in-memory notification queue", "buffer_size", bufferSize)
	return &MemoryQueue{ch: make(chan *models.Notification, bufferSize)}
}

// Enqueue adds a notification, waiting for buffer space until ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("notification must have an ID")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.ch <- n:
		slog.Debug("Notification enqueued", "notification_id", n.ID, "kind", n.Kind)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue is full, could not enqueue notification %s: %w", n.ID, ctx.Err())
	}
}

// Dequeue retrieves the next notification from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (*models.Notification, error) {
	select {
	case n, ok := <-q.ch:
		if !ok {
			return nil, ErrClosed
		}
		slog.Debug("Notification dequeued", "notification_id", n.ID, "kind", n.Kind)
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of buffered notifications.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting notifications. Buffered ones can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	slog.Info("Memory queue closed")
	return nil
}
