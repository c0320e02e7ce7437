package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gatherly-dev/gatherly/internal/audit"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleService is the RBAC authority: it creates roles, assigns them and
// produces the snapshots that permission checks run against.
type RoleService struct {
	db     *gorm.DB
	policy *rbac.Policy
	logger *slog.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(db *gorm.DB, policy *rbac.Policy, logger *slog.Logger) *RoleService {
	return &RoleService{db: db, policy: policy, logger: logger}
}

// UserWithRoles pairs a user with the names of the roles it holds.
type UserWithRoles struct {
	models.User
	Roles []string `json:"roles"`
}

// Snapshot loads the user and captures its current authorization state.
func (s *RoleService) Snapshot(ctx context.Context, userID uuid.UUID) (rbac.Subject, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return rbac.Subject{}, notFoundOr(err)
	}
	return s.policy.Snapshot(&user)
}

// EnsureDefaultRole gives a freshly created user the default role unless it already holds one.
func (s *RoleService) EnsureDefaultRole(userID uuid.UUID) error {
	_, err := s.policy.AddRoleIfNone(userID, models.RoleUser)
	return err
}

// AssignRole replaces the target's entire role set with exactly {roleName}.
// Only an active admin may call it.
func (s *RoleService) AssignRole(ctx context.Context, actor rbac.Subject, targetID uuid.UUID, roleName string) error {
	if !actor.IsActive || !rbac.HasRole(actor, models.RoleAdmin) {
		return ErrForbidden
	}

	var target models.User
	if err := s.db.WithContext(ctx).First(&target, "id = ?", targetID).Error; err != nil {
		return notFoundOr(err)
	}

	role, err := s.findRole(ctx, roleName)
	if err != nil {
		return err
	}

	if err := s.policy.ReplaceRoles(target.ID, role.Name); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	audit.LogAction(s.db, actor.UserID, audit.ActionAssignRole, "user:"+target.ID.String(), map[string]interface{}{
		"username": target.Username,
		"role":     role.Name,
	})
	return nil
}

// CreateRole adds a named role with an explicit, possibly empty, permission set.
func (s *RoleService) CreateRole(ctx context.Context, actor rbac.Subject, name, description string, permissions []string) (*models.Role, error) {
	if !actor.IsActive || !rbac.HasRole(actor, models.RoleAdmin) {
		return nil, ErrForbidden
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("role name is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Role{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, invalid(fmt.Sprintf("role %q already exists", name))
	}

	perms, err := s.validatePermissions(ctx, permissions)
	if err != nil {
		return nil, err
	}

	role := models.Role{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, &ConflictError{Message: fmt.Sprintf("role %q already exists", name)}
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	if err := s.policy.Grant(role.Name, perms...); err != nil {
		// Keep the catalog consistent with the policy store.
		if rbErr := s.db.WithContext(ctx).Unscoped().Delete(&role).Error; rbErr != nil {
			s.logger.Error("Failed to remove role after grant failure", "role", role.Name, "error", rbErr)
		}
		return nil, err
	}
	role.Permissions = perms

	audit.LogAction(s.db, actor.UserID, audit.ActionCreateRole, fmt.Sprintf("role:%d", role.ID), map[string]interface{}{
		"name":        role.Name,
		"permissions": perms,
	})
	return &role, nil
}

// validatePermissions dedupes codenames and rejects unknown ones.
func (s *RoleService) validatePermissions(ctx context.Context, codenames []string) ([]string, error) {
	if len(codenames) == 0 {
		return []string{}, nil
	}

	unique := make(map[string]struct{}, len(codenames))
	for _, c := range codenames {
		unique[strings.TrimSpace(c)] = struct{}{}
	}
	wanted := make([]string, 0, len(unique))
	for c := range unique {
		wanted = append(wanted, c)
	}
	sort.Strings(wanted)

	var known []models.Permission
	if err := s.db.WithContext(ctx).Where("codename IN ?", wanted).Find(&known).Error; err != nil {
		return nil, err
	}
	if len(known) != len(wanted) {
		found := make(map[string]bool, len(known))
		for _, p := range known {
			found[p.Codename] = true
		}
		for _, c := range wanted {
			if !found[c] {
				return nil, invalid(fmt.Sprintf("unknown permission %q", c))
			}
		}
	}
	return wanted, nil
}

func (s *RoleService) findRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", strings.TrimSpace(name)).First(&role).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &role, nil
}

// ListRoles returns every role with its granted permissions.
func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := s.policy.PermissionsOf(roles[i].Name)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// ListPermissions returns the permission catalog.
func (s *RoleService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	err := s.db.WithContext(ctx).Order("codename").Find(&perms).Error
	return perms, err
}

// RolesOf returns the role names held by a user.
func (s *RoleService) RolesOf(userID uuid.UUID) ([]string, error) {
	return s.policy.RolesOf(userID)
}

// ListUsers returns users with their roles, for the admin dashboard. A
// non-empty role keeps only the users holding it.
func (s *RoleService) ListUsers(ctx context.Context, role string) ([]UserWithRoles, error) {
	q := s.db.WithContext(ctx).Order("username")
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
		r, err := s.findRole(ctx, role)
		if err != nil {
			return nil, err
		}
		ids, err := s.policy.UsersWithRole(r.Name)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []UserWithRoles{}, nil
		}
		q = q.Where("id IN ?", ids)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	memberships, err := s.policy.Memberships()
	if err != nil {
		return nil, err
	}
	out := make([]UserWithRoles, len(users))
	for i, u := range users {
		roles := memberships[u.ID]
		if roles == nil {
			roles = []string{}
		}
		out[i] = UserWithRoles{User: u, Roles: roles}
	}
	return out, nil
}
