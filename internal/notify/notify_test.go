package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"github.com/gatherly-dev/gatherly/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotify_StoresAndEnqueues(t *testing.T) {
	db := testutil.NewDB(t)
	q := queue.NewMemoryQueue(4)
	d := NewDispatcher(db, q, metrics.New(), discard(), "http://localhost", 0)

	alice := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	d.Notify(context.Background(), models.NotificationRSVPConfirmation, alice, map[string]interface{}{"event_name": "Jazz"})

	require.Equal(t, 1, q.Len())
	queued, err := q.Dequeue(context.Background())
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", queued.ID).Error)
	assert.Equal(t, models.NotificationStatusPending, stored.Status)
	assert.Equal(t, "alice@example.com", stored.Recipient)
	assert.Equal(t, "Jazz", stored.Context["event_name"])
}

func TestNotify_CancelledRequestStillQueues(t *testing.T) {
	db := testutil.NewDB(t)
	q := queue.NewMemoryQueue(4)
	d := NewDispatcher(db, q, nil, discard(), "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, models.NotificationRSVPConfirmation, &models.User{ID: uuid.New(), Email: "a@example.com"}, nil)

	assert.Equal(t, 1, q.Len())
}

func TestNotify_FullQueueMarksRowFailed(t *testing.T) {
	db := testutil.NewDB(t)
	q := queue.NewMemoryQueue(1)
	m := metrics.New()
	d := NewDispatcher(db, q, m, discard(), "", 200*time.Millisecond)
	u := &models.User{ID: uuid.New(), Email: "a@example.com"}

	d.Notify(context.Background(), models.NotificationRSVPConfirmation, u, nil)
	assert.NotPanics(t, func() {
		d.Notify(context.Background(), models.NotificationRSVPConfirmation, u, nil)
	})

	var failed int64
	require.NoError(t, db.Model(&models.Notification{}).Where("status = ?", models.NotificationStatusFailed).Count(&failed).Error)
	assert.Equal(t, int64(1), failed)
}

func TestNotify_RenderFailureStoresNothing(t *testing.T) {
	db := testutil.NewDB(t)
	q := queue.NewMemoryQueue(1)
	d := NewDispatcher(db, q, nil, discard(), "", 0)

	d.Notify(context.Background(), models.NotificationRSVPConfirmation, &models.User{ID: uuid.New()}, nil)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, q.Len())
}
