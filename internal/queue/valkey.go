package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
	"gorm.io/gorm"
)

// ValkeyQueue implements a distributed notification queue using Valkey.
// Only IDs travel through Valkey; the row is loaded from the database.
type ValkeyQueue struct {
	client valkey.Client
	db     *gorm.DB
	key    string
}

// NewValkeyQueue creates a new Valkey-backed queue
func NewValkeyQueue(addr string, db *gorm.DB) (*ValkeyQueue, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance is required for Valkey queue")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	q := &ValkeyQueue{
		client: client,
		db:     db,
		key:    "gatherly:notifications",
	}

	slog.Info("Initialized Valkey notification queue",
		"address", addr,
		"queue_key", q.key)
	return q, nil
}

type envelope struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Enqueue pushes the notification ID. The row must already be stored.
func (q *ValkeyQueue) Enqueue(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("notification must have an ID")
	}

	data, err := json.Marshal(envelope{ID: n.ID.String(), Kind: string(n.Kind)})
	if err != nil {
		return fmt.Errorf("failed to marshal notification envelope: %w", err)
	}

	// RPUSH + BLPOP gives FIFO order
	cmd := q.client.B().Rpush().Key(q.key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push notification to Valkey: %w", err)
	}

	slog.Debug("Notification enqueued",
		"notification_id", n.ID,
		"kind", n.Kind,
		"queue_key", q.key)
	return nil
}

// Dequeue pops the next ID (blocking up to 5 seconds) and loads its row.
func (q *ValkeyQueue) Dequeue(ctx context.Context) (*models.Notification, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(5).Build()
	values, err := q.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("blpop: %w", err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	var env envelope
	if err := json.Unmarshal([]byte(values[1]), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification envelope: %w", err)
	}

	id, err := uuid.Parse(env.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification ID: %w", err)
	}

	var n models.Notification
	if err := q.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch notification from database: %w", err)
	}

	slog.Debug("Notification dequeued", "notification_id", n.ID, "kind", n.Kind)
	return &n, nil
}

// Close closes the Valkey connection
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	slog.Info("Valkey queue closed")
	return nil
}
