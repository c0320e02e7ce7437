package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func bobRequest() RegisterRequest {
	return RegisterRequest{
		Username:        "bob",
		Email:           "Bob@Example.com",
		FirstName:       "Bob",
		LastName:        "Builder",
		Password:        "s3cretpass",
		PasswordConfirm: "s3cretpass",
	}
}

func activationToken(t *testing.T, env *testEnv, userID uuid.UUID) string {
	t.Helper()
	calls := env.notifier.OfKind(models.NotificationAccountActivation)
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Recipient.ID == userID {
			token, ok := calls[i].Data["token"].(string)
			require.True(t, ok)
			return token
		}
	}
	t.Fatalf("no activation notification for %s", userID)
	return ""
}

func TestRegister_CreatesInactiveUserWithDefaultRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)
	assert.False(t, bob.IsActive)
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.NotEqual(t, "s3cretpass", bob.PasswordHash)
	assert.True(t, auth.VerifyPassword(bob.PasswordHash, "s3cretpass"))

	roles, err := env.roles.RolesOf(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleUser}, roles)

	calls := env.notifier.OfKind(models.NotificationAccountActivation)
	require.Len(t, calls, 1)
	assert.Equal(t, bob.ID, calls[0].Recipient.ID)
	assert.Equal(t, bob.ID.String(), calls[0].Data["user_id"])
}

func TestActivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)
	token := activationToken(t, env, bob.ID)

	activated, err := env.directory.Activate(ctx, bob.ID, token)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	stored, err := env.directory.GetProfile(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	// The token is bound to the inactive state, so it can't be replayed.
	_, err = env.directory.Activate(ctx, bob.ID, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActivate_InvalidTokenLeavesUserInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)

	_, err = env.directory.Activate(ctx, bob.ID, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token issued for another user doesn't activate bob.
	other, err := env.directory.Register(ctx, RegisterRequest{
		Username: "other", Email: "other@example.com",
		Password: "s3cretpass", PasswordConfirm: "s3cretpass",
	})
	require.NoError(t, err)
	_, err = env.directory.Activate(ctx, bob.ID, activationToken(t, env, other.ID))
	assert.ErrorIs(t, err, ErrInvalidToken)

	stored, err := env.directory.GetProfile(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestActivate_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)
	token := activationToken(t, env, bob.ID)

	env.tokens.WithClock(func() time.Time { return testToday.Add(2 * time.Hour) })

	_, err = env.directory.Activate(ctx, bob.ID, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActivate_StaleAfterPasswordChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bob, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)
	token := activationToken(t, env, bob.ID)

	require.NoError(t, env.directory.ChangePassword(ctx, bob.ID, "s3cretpass", "another-pass"))

	_, err = env.directory.Activate(ctx, bob.ID, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActivate_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.directory.Activate(context.Background(), uuid.New(), "whatever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.directory.Register(ctx, bobRequest())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"duplicate email ignores case", func(r *RegisterRequest) { r.Username = "bob2"; r.Email = "BOB@example.com" }},
		{"duplicate username", func(r *RegisterRequest) { r.Email = "bob2@example.com" }},
		{"blank username", func(r *RegisterRequest) { r.Username = "  "; r.Email = "x@example.com" }},
		{"bad email", func(r *RegisterRequest) { r.Username = "bob3"; r.Email = "not-an-email" }},
		{"short password", func(r *RegisterRequest) {
			r.Username = "bob4"
			r.Email = "bob4@example.com"
			r.Password = "short"
			r.PasswordConfirm = "short"
		}},
		{"mismatched passwords", func(r *RegisterRequest) {
			r.Username = "bob5"
			r.Email = "bob5@example.com"
			r.PasswordConfirm = "different1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := bobRequest()
			tt.mutate(&req)
			_, err := env.directory.Register(ctx, req)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}

	count, err := env.directory.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, env.notifier.OfKind(models.NotificationAccountActivation), 1)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "gina", true, models.RoleUser)
	env.user(t, "hank", true, models.RoleUser)

	first := "Gina"
	updated, err := env.directory.UpdateProfile(ctx, u.ID, ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Gina", updated.FirstName)
	assert.Equal(t, "gina@example.com", updated.Email)

	taken := "HANK@example.com"
	_, err = env.directory.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &taken})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	own := "gina@example.com"
	_, err = env.directory.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: &own})
	assert.NoError(t, err)

	_, err = env.directory.UpdateProfile(ctx, uuid.New(), ProfileUpdate{FirstName: &first})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "ivy", true, models.RoleUser)

	var vErr *ValidationError
	assert.ErrorAs(t, env.directory.ChangePassword(ctx, u.ID, "wrong-password", "new-password"), &vErr)
	assert.ErrorAs(t, env.directory.ChangePassword(ctx, u.ID, "password123", "short"), &vErr)

	require.NoError(t, env.directory.ChangePassword(ctx, u.ID, "password123", "new-password"))
	stored, err := env.directory.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(stored.PasswordHash, "new-password"))
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.directory.CreateAdmin(ctx, "root", "", "rootpass1")
	require.NoError(t, err)
	assert.True(t, admin.IsActive)
	assert.Equal(t, "root@gatherly.local", admin.Email)

	roles, err := env.roles.RolesOf(admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)
	assert.Empty(t, env.notifier.Calls())

	_, err = env.directory.CreateAdmin(ctx, "root", "", "rootpass1")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestRegister_LostUniqueRaceIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	// The row check passes, then the unique index rejects the insert as it
	// would when a concurrent registration commits in between.
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:unique_race", func(db *gorm.DB) {
		if db.Statement.Table == "users" {
			db.AddError(errors.New("UNIQUE constraint failed: users.email"))
		}
	}))

	_, err := env.directory.Register(context.Background(), bobRequest())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email already exists", verr.Message)
	assert.Empty(t, env.notifier.Calls())
}

func TestDuplicateUser_NamesTheTakenField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "bob", true, models.RoleUser)

	var verr *ValidationError
	require.ErrorAs(t, env.directory.duplicateUser(ctx, "bob"), &verr)
	assert.Equal(t, "Username already exists", verr.Message)
	require.ErrorAs(t, env.directory.duplicateUser(ctx, "robert"), &verr)
	assert.Equal(t, "Email already exists", verr.Message)
}
