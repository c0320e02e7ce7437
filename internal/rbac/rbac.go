package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

const (
	userPrefix = "user:"
	rolePrefix = "role:"
)

func userSubject(userID uuid.UUID) string { return userPrefix + userID.String() }
func roleSubject(name string) string      { return rolePrefix + name }

// Policy stores role grants (p, role:<name>, <permission>) and memberships
// (g, user:<id>, role:<name>) in casbin, persisted through the gorm adapter.
// Reads and writes reload the stored rules first, so grants made by another
// process sharing the database are seen without a restart.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
	logger   *slog.Logger

	// serializes membership rewrites so a replace is never interleaved
	mu sync.Mutex
}

// NewPolicy initializes the casbin enforcer on db and loads stored policies.
func NewPolicy(db *gorm.DB, logger *slog.Logger) (*Policy, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	logger.Info("RBAC enforcer initialized")
	return &Policy{enforcer: e, logger: logger}, nil
}

// SeedDefaults grants each seeded role its permissions if the role has no grants yet.
// Roles an administrator already edited are left alone.
func (p *Policy) SeedDefaults(seeds []models.RoleSeed) error {
	for _, seed := range seeds {
		existing, err := p.PermissionsOf(seed.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		if err := p.Grant(seed.Name, seed.Permissions...); err != nil {
			return fmt.Errorf("seed role %s: %w", seed.Name, err)
		}
		p.logger.Info("Seeded role permissions", "role", seed.Name, "permissions", len(seed.Permissions))
	}
	return nil
}

// Grant adds permissions to a role.
func (p *Policy) Grant(role string, perms ...string) error {
	if len(perms) == 0 {
		return nil
	}
	if err := p.reload(); err != nil {
		return err
	}
	rules := make([][]string, 0, len(perms))
	for _, perm := range perms {
		rules = append(rules, []string{roleSubject(role), perm})
	}
	if _, err := p.enforcer.AddPolicies(rules); err != nil {
		return fmt.Errorf("grant permissions to %s: %w", role, err)
	}
	return nil
}

func (p *Policy) reload() error {
	if err := p.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("reload policies: %w", err)
	}
	return nil
}

// PermissionsOf returns the sorted permissions granted to a role.
func (p *Policy) PermissionsOf(role string) ([]string, error) {
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p.permissionsOf(role)
}

func (p *Policy) permissionsOf(role string) ([]string, error) {
	policies, err := p.enforcer.GetFilteredPolicy(0, roleSubject(role))
	if err != nil {
		return nil, err
	}
	perms := make([]string, 0, len(policies))
	for _, policy := range policies {
		if len(policy) >= 2 {
			perms = append(perms, policy[1])
		}
	}
	sort.Strings(perms)
	return perms, nil
}

// RolesOf returns the sorted role names a user holds.
func (p *Policy) RolesOf(userID uuid.UUID) ([]string, error) {
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p.rolesOf(userID)
}

func (p *Policy) rolesOf(userID uuid.UUID) ([]string, error) {
	subjects, err := p.enforcer.GetRolesForUser(userSubject(userID))
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(subjects))
	for _, s := range subjects {
		roles = append(roles, strings.TrimPrefix(s, rolePrefix))
	}
	sort.Strings(roles)
	return roles, nil
}

// AddRoleIfNone gives the user role only when the user holds no role at all.
// It reports whether the role was added.
func (p *Policy) AddRoleIfNone(userID uuid.UUID, role string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.reload(); err != nil {
		return false, err
	}
	roles, err := p.rolesOf(userID)
	if err != nil {
		return false, err
	}
	if len(roles) > 0 {
		return false, nil
	}
	if _, err := p.enforcer.AddRoleForUser(userSubject(userID), roleSubject(role)); err != nil {
		return false, fmt.Errorf("add role %s: %w", role, err)
	}
	return true, nil
}

// ReplaceRoles clears every role of the user and then adds exactly role.
func (p *Policy) ReplaceRoles(userID uuid.UUID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.reload(); err != nil {
		return err
	}
	if _, err := p.enforcer.DeleteRolesForUser(userSubject(userID)); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	if _, err := p.enforcer.AddRoleForUser(userSubject(userID), roleSubject(role)); err != nil {
		return fmt.Errorf("add role %s: %w", role, err)
	}
	return nil
}

// Memberships returns the sorted role names of every user holding at least one role.
func (p *Policy) Memberships() (map[uuid.UUID][]string, error) {
	if err := p.reload(); err != nil {
		return nil, err
	}
	rules, err := p.enforcer.GetGroupingPolicy()
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID][]string)
	for _, rule := range rules {
		if len(rule) < 2 {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(rule[0], userPrefix))
		if err != nil {
			continue
		}
		out[id] = append(out[id], strings.TrimPrefix(rule[1], rolePrefix))
	}
	for _, roles := range out {
		sort.Strings(roles)
	}
	return out, nil
}

// UsersWithRole returns the IDs of every user holding role.
func (p *Policy) UsersWithRole(role string) ([]uuid.UUID, error) {
	if err := p.reload(); err != nil {
		return nil, err
	}
	subjects, err := p.enforcer.GetUsersForRole(roleSubject(role))
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(subjects))
	for _, s := range subjects {
		if id, err := uuid.Parse(strings.TrimPrefix(s, userPrefix)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Snapshot captures the user's current roles and permissions.
func (p *Policy) Snapshot(user *models.User) (Subject, error) {
	if err := p.reload(); err != nil {
		return Subject{}, err
	}
	roles, err := p.rolesOf(user.ID)
	if err != nil {
		return Subject{}, fmt.Errorf("load roles: %w", err)
	}

	grants := make([]RoleGrant, 0, len(roles))
	for _, role := range roles {
		perms, err := p.permissionsOf(role)
		if err != nil {
			return Subject{}, fmt.Errorf("load permissions for %s: %w", role, err)
		}
		grants = append(grants, RoleGrant{Name: role, Permissions: perms})
	}

	return NewSubject(user, grants), nil
}
