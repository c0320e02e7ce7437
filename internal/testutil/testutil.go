// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gatherly-dev/gatherly/internal/config"
	"github.com/gatherly-dev/gatherly/internal/db"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a per-test directory.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := db.New(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))

	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database
}

// Notification is one call recorded by RecordingNotifier.
type Notification struct {
	Kind      models.NotificationKind
	Recipient *models.User
	Data      map[string]interface{}
}

// RecordingNotifier remembers every Notify call.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []Notification
}

// Notify records the call.
func (n *RecordingNotifier) Notify(_ context.Context, kind models.NotificationKind, recipient *models.User, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Kind: kind, Recipient: recipient, Data: data})
}

// Calls returns a copy of the recorded calls.
func (n *RecordingNotifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

// OfKind returns the recorded calls of one kind.
func (n *RecordingNotifier) OfKind(kind models.NotificationKind) []Notification {
	var out []Notification
	for _, c := range n.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
