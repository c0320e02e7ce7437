package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is a named bundle of permissions (admin, organizer, user).
// Grants and memberships are stored as casbin policies; this row is the catalog entry.
type Role struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `json:"description"`
	Permissions []string       `gorm:"-" json:"permissions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Built-in role names.
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleUser      = "user"
)

// RoleSeed describes a role created at migration time.
type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultRoles are seeded if they don't exist. RoleUser is assigned to every new account.
var DefaultRoles = []RoleSeed{
	{
		Name:        RoleAdmin,
		Description: "Full system access including role management",
		Permissions: []string{
			PermViewEvent, PermAddEvent, PermChangeEvent, PermDeleteEvent,
			PermViewCategory, PermAddCategory, PermChangeCategory, PermDeleteCategory,
		},
	},
	{
		Name:        RoleOrganizer,
		Description: "Manages events and categories",
		Permissions: []string{
			PermViewEvent, PermAddEvent, PermChangeEvent, PermDeleteEvent,
			PermViewCategory, PermAddCategory, PermChangeCategory, PermDeleteCategory,
		},
	},
	{
		Name:        RoleUser,
		Description: "Browses events and RSVPs",
		Permissions: []string{PermViewEvent, PermViewCategory},
	},
}
