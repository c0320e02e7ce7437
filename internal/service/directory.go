package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/gatherly-dev/gatherly/internal/audit"
	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MinPasswordLength is enforced at registration and password change.
const MinPasswordLength = 8

// TokenIssuer creates and checks activation tokens bound to a user's state.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
	Verify(user *models.User, token string) error
}

// DirectoryService owns user identity: registration, activation and profiles.
type DirectoryService struct {
	db       *gorm.DB
	roles    *RoleService
	tokens   TokenIssuer
	notifier Notifier
	logger   *slog.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(db *gorm.DB, roles *RoleService, tokens TokenIssuer, notifier Notifier, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{db: db, roles: roles, tokens: tokens, notifier: notifier, logger: logger}
}

// RegisterRequest holds sign-up parameters.
type RegisterRequest struct {
	Username        string
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

// ProfileUpdate holds editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Register creates an inactive user holding the default role, then sends an
// activation notification once the account is committed.
func (s *DirectoryService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" {
		return nil, invalid("username is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, invalid("The two password fields didn't match")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		IsActive:     false,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(tx, "email", email, uuid.Nil, "Email already exists"); err != nil {
			return err
		}
		if err := ensureUnique(tx, "username", username, uuid.Nil, "Username already exists"); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if isDuplicateKey(err) {
		return nil, s.duplicateUser(ctx, username)
	}
	if err != nil {
		return nil, err
	}

	// Policy writes go through their own connection, so they run after the
	// user row commits; undo the user if the default role can't be stored.
	if err := s.roles.EnsureDefaultRole(user.ID); err != nil {
		s.db.Unscoped().Delete(&user)
		return nil, fmt.Errorf("assign default role: %w", err)
	}

	audit.LogAction(s.db, user.ID, audit.ActionRegisterUser, "user:"+user.ID.String(), map[string]interface{}{
		"username": user.Username,
	})

	s.sendActivation(ctx, &user)
	return &user, nil
}

func (s *DirectoryService) sendActivation(ctx context.Context, user *models.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("Failed to issue activation token", "user_id", user.ID, "error", err)
		return
	}
	s.notifier.Notify(ctx, models.NotificationAccountActivation, user, map[string]interface{}{
		"user_id": user.ID.String(),
		"token":   token,
	})
}

// Activate flips an inactive user to active when token is valid for it.
func (s *DirectoryService) Activate(ctx context.Context, userID uuid.UUID, token string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err)
	}

	if err := s.tokens.Verify(&user, token); err != nil {
		s.logger.Warn("Rejected activation token", "user_id", userID, "error", err)
		return nil, ErrInvalidToken
	}

	// Conditional update so two concurrent activations can't both succeed.
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_active = ?", user.ID, false).
		Update("is_active", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidToken
	}
	user.IsActive = true

	audit.LogAction(s.db, user.ID, audit.ActionActivateUser, "user:"+user.ID.String(), nil)
	return &user, nil
}

// GetProfile returns a user by ID.
func (s *DirectoryService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

// UpdateProfile edits name and e-mail of the user.
func (s *DirectoryService) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return notFoundOr(err)
		}

		updates := map[string]interface{}{}
		if upd.FirstName != nil {
			updates["first_name"] = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			updates["last_name"] = strings.TrimSpace(*upd.LastName)
		}
		if upd.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*upd.Email))
			if err := validateEmail(email); err != nil {
				return err
			}
			if err := ensureUnique(tx, "email", email, user.ID, "Email already exists"); err != nil {
				return err
			}
			updates["email"] = email
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if isDuplicateKey(err) {
		return nil, invalid("Email already exists")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *DirectoryService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return notFoundOr(err)
	}
	if !auth.VerifyPassword(user.PasswordHash, oldPassword) {
		return invalid("Your old password was entered incorrectly")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error
}

// CreateAdmin creates an active user holding only the admin role. It is used
// for bootstrapping and bypasses activation.
func (s *DirectoryService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return nil, invalid("username is required")
	}
	if email == "" {
		email = username + "@gatherly.local"
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{Username: username, Email: email, PasswordHash: hash, IsActive: true}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUnique(tx, "username", username, uuid.Nil, "Username already exists"); err != nil {
			return err
		}
		if err := ensureUnique(tx, "email", email, uuid.Nil, "Email already exists"); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		return nil
	})
	if isDuplicateKey(err) {
		return nil, s.duplicateUser(ctx, username)
	}
	if err != nil {
		return nil, err
	}

	if err := s.roles.policy.ReplaceRoles(user.ID, models.RoleAdmin); err != nil {
		s.db.Unscoped().Delete(&user)
		return nil, fmt.Errorf("grant admin role: %w", err)
	}

	audit.LogAction(s.db, user.ID, audit.ActionCreateAdmin, "user:"+user.ID.String(), map[string]interface{}{
		"username": user.Username,
	})
	return &user, nil
}

// CountUsers returns the number of accounts.
func (s *DirectoryService) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func ensureUnique(tx *gorm.DB, column, value string, except uuid.UUID, msg string) error {
	q := tx.Model(&models.User{}).Where(column+" = ?", value)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return invalid(msg)
	}
	return nil
}

// duplicateUser names the field behind a unique index violation that slipped
// past ensureUnique because a concurrent write committed first. It must run
// outside the failed transaction.
func (s *DirectoryService) duplicateUser(ctx context.Context, username string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err == nil && count > 0 {
		return invalid("Username already exists")
	}
	return invalid("Email already exists")
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("Enter a valid email address")
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}
