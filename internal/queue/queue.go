// Package queue carries notification IDs from the dispatcher to the worker.
// The database row is the source of truth; the queue only transports work.
package queue

import (
	"context"
	"errors"

	"github.com/gatherly-dev/gatherly/internal/models"
)

// ErrClosed is returned by Enqueue and Dequeue after Close.
var ErrClosed = errors.New("queue closed")

// Queue represents a notification queue
type Queue interface {
	// Enqueue hands a persisted notification to the worker
	Enqueue(ctx context.Context, n *models.Notification) error

	// Dequeue blocks until a notification is available.
	// It returns context.DeadlineExceeded when a poll found nothing.
	Dequeue(ctx context.Context) (*models.Notification, error)

	// Close closes the queue and releases resources
	Close() error
}
