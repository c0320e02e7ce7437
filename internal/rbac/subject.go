package rbac

import (
	"sort"
	"strings"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
)

// RoleGrant is one role held by a subject together with the permissions it grants.
type RoleGrant struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Subject is an immutable snapshot of a user's authorization state taken when the
// request was authenticated. Checks never consult ambient or global state.
type Subject struct {
	UserID   uuid.UUID   `json:"user_id"`
	Username string      `json:"username"`
	IsActive bool        `json:"is_active"`
	Roles    []RoleGrant `json:"roles"`
}

// NewSubject copies grants so later mutation of the inputs can't leak into the snapshot.
func NewSubject(user *models.User, grants []RoleGrant) Subject {
	roles := make([]RoleGrant, len(grants))
	for i, g := range grants {
		perms := append([]string(nil), g.Permissions...)
		sort.Strings(perms)
		roles[i] = RoleGrant{Name: g.Name, Permissions: perms}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })

	return Subject{
		UserID:   user.ID,
		Username: user.Username,
		IsActive: user.IsActive,
		Roles:    roles,
	}
}

// HasPermission is true iff any of the subject's roles grants perm.
func HasPermission(s Subject, perm string) bool {
	for _, role := range s.Roles {
		for _, p := range role.Permissions {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether the subject holds the named role. Names compare case-insensitively.
func HasRole(s Subject, name string) bool {
	for _, role := range s.Roles {
		if strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

// RoleNames returns the subject's role names in sorted order.
func (s Subject) RoleNames() []string {
	names := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		names[i] = r.Name
	}
	return names
}

// Permissions returns the sorted union of all granted permissions.
func (s Subject) Permissions() []string {
	seen := make(map[string]struct{})
	for _, r := range s.Roles {
		for _, p := range r.Permissions {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Dashboard names returned by DashboardFor.
const (
	DashboardAdmin       = "admin"
	DashboardOrganizer   = "organizer"
	DashboardParticipant = "participant"
)

// DashboardFor picks the landing dashboard for a subject, admin first.
func DashboardFor(s Subject) string {
	switch {
	case HasRole(s, models.RoleAdmin):
		return DashboardAdmin
	case HasRole(s, models.RoleOrganizer):
		return DashboardOrganizer
	default:
		return DashboardParticipant
	}
}
