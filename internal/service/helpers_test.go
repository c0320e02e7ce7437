package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gatherly-dev/gatherly/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testToday = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db        *gorm.DB
	policy    *rbac.Policy
	notifier  *testutil.RecordingNotifier
	tokens    *auth.ActivationTokens
	metrics   *metrics.Metrics
	roles     *RoleService
	directory *DirectoryService
	catalog   *CatalogService
	rsvps     *RSVPService
	dashboard *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	policy, err := rbac.NewPolicy(db, logger)
	require.NoError(t, err)
	require.NoError(t, policy.SeedDefaults(models.DefaultRoles))

	clock := Clock(func() time.Time { return testToday })
	notifier := &testutil.RecordingNotifier{}
	tokens := auth.NewActivationTokens("test-secret", time.Hour).WithClock(func() time.Time { return testToday })
	m := metrics.New()

	roles := NewRoleService(db, policy, logger)
	catalog := NewCatalogService(db, clock)
	return &testEnv{
		db:        db,
		policy:    policy,
		notifier:  notifier,
		tokens:    tokens,
		metrics:   m,
		roles:     roles,
		directory: NewDirectoryService(db, roles, tokens, notifier, logger),
		catalog:   catalog,
		rsvps:     NewRSVPService(db, notifier, m, clock, logger),
		dashboard: NewDashboardService(db, catalog, clock),
	}
}

// user inserts a user directly and gives it exactly the listed roles.
func (e *testEnv) user(t *testing.T, username string, active bool, roles ...string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     active,
	}
	require.NoError(t, e.db.Create(&u).Error)

	for i, role := range roles {
		if i == 0 {
			require.NoError(t, e.policy.ReplaceRoles(u.ID, role))
			continue
		}
		// extra memberships go straight to the rule table; assignment
		// through the services only ever replaces
		require.NoError(t, e.db.Table("casbin_rule").Create(&gormadapter.CasbinRule{
			Ptype: "g",
			V0:    "user:" + u.ID.String(),
			V1:    "role:" + role,
		}).Error)
	}
	return &u
}

func (e *testEnv) subject(t *testing.T, u *models.User) rbac.Subject {
	t.Helper()
	s, err := e.roles.Snapshot(context.Background(), u.ID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := e.catalog.CreateCategory(context.Background(), uuid.Nil, CategoryInput{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) event(t *testing.T, categoryID uint, name, date, location string) *models.Event {
	t.Helper()
	ev, err := e.catalog.CreateEvent(context.Background(), uuid.Nil, EventInput{
		Name:       name,
		Date:       date,
		Time:       "18:30",
		Location:   location,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return ev
}

func (e *testEnv) participationCount(t *testing.T, eventID uint) int64 {
	t.Helper()
	n, err := e.rsvps.CountParticipants(context.Background(), eventID)
	require.NoError(t, err)
	return n
}
