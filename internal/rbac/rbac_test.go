package rbac

import (
	"io"
	"log/slog"
	"testing"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	db := testutil.NewDB(t)
	p, err := NewPolicy(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, p.SeedDefaults(models.DefaultRoles))
	return p
}

func TestSeedDefaults_IsIdempotentAndKeepsEdits(t *testing.T) {
	p := newTestPolicy(t)

	perms, err := p.PermissionsOf(models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermViewCategory, models.PermViewEvent}, perms)

	require.NoError(t, p.Grant(models.RoleUser, models.PermAddEvent))
	require.NoError(t, p.SeedDefaults(models.DefaultRoles))

	perms, err = p.PermissionsOf(models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermAddEvent, models.PermViewCategory, models.PermViewEvent}, perms)
}

func TestMemberships(t *testing.T) {
	p := newTestPolicy(t)
	id := uuid.New()

	added, err := p.AddRoleIfNone(id, models.RoleUser)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = p.AddRoleIfNone(id, models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = p.enforcer.AddRoleForUser(userSubject(id), roleSubject(models.RoleOrganizer))
	require.NoError(t, err)
	roles, err := p.RolesOf(id)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleOrganizer, models.RoleUser}, roles)

	require.NoError(t, p.ReplaceRoles(id, models.RoleAdmin))
	roles, err = p.RolesOf(id)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)

	admins, err := p.UsersWithRole(models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, admins)
}

func TestSnapshot_MatchesSeededGrants(t *testing.T) {
	p := newTestPolicy(t)

	for _, seed := range models.DefaultRoles {
		user := &models.User{ID: uuid.New(), Username: seed.Name + "-holder", IsActive: true}
		require.NoError(t, p.ReplaceRoles(user.ID, seed.Name))

		s, err := p.Snapshot(user)
		require.NoError(t, err)
		assert.Equal(t, []string{seed.Name}, s.RoleNames())

		granted := map[string]bool{}
		for _, perm := range seed.Permissions {
			granted[perm] = true
		}
		for _, perm := range models.DefaultPermissions {
			assert.Equal(t, granted[perm.Codename], HasPermission(s, perm.Codename), "%s/%s", seed.Name, perm.Codename)
		}
	}
}

func TestPolicyPersists(t *testing.T) {
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	first, err := NewPolicy(db, logger)
	require.NoError(t, err)
	require.NoError(t, first.SeedDefaults(models.DefaultRoles))
	id := uuid.New()
	require.NoError(t, first.ReplaceRoles(id, models.RoleOrganizer))

	second, err := NewPolicy(db, logger)
	require.NoError(t, err)
	roles, err := second.RolesOf(id)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleOrganizer}, roles)
}

func TestPolicy_SeesWritesFromAnotherInstance(t *testing.T) {
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	first, err := NewPolicy(db, logger)
	require.NoError(t, err)
	require.NoError(t, first.SeedDefaults(models.DefaultRoles))

	user := &models.User{ID: uuid.New(), Username: "cli-admin", IsActive: true}
	require.NoError(t, first.ReplaceRoles(user.ID, models.RoleUser))
	before, err := first.Snapshot(user)
	require.NoError(t, err)
	require.False(t, HasRole(before, models.RoleAdmin))

	second, err := NewPolicy(db, logger)
	require.NoError(t, err)
	require.NoError(t, second.ReplaceRoles(user.ID, models.RoleAdmin))

	after, err := first.Snapshot(user)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, after.RoleNames())
	assert.True(t, HasPermission(after, models.PermDeleteCategory))

	require.NoError(t, second.Grant("reviewer", models.PermViewEvent))
	perms, err := first.PermissionsOf("reviewer")
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermViewEvent}, perms)

	// first's replace starts from the stored set, not its own older copy
	require.NoError(t, first.ReplaceRoles(user.ID, models.RoleOrganizer))
	roles, err := second.RolesOf(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleOrganizer}, roles)
}
