package models

// Permission is an atomic capability such as "add_event".
type Permission struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Codename string `gorm:"uniqueIndex;not null" json:"codename"`
	Name     string `gorm:"not null" json:"name"`
}

// Permission codenames checked by the API.
const (
	PermViewEvent      = "view_event"
	PermAddEvent       = "add_event"
	PermChangeEvent    = "change_event"
	PermDeleteEvent    = "delete_event"
	PermViewCategory   = "view_category"
	PermAddCategory    = "add_category"
	PermChangeCategory = "change_category"
	PermDeleteCategory = "delete_category"
)

// DefaultPermissions is the seeded, immutable permission catalog.
var DefaultPermissions = []Permission{
	{Codename: PermViewEvent, Name: "Can view event"},
	{Codename: PermAddEvent, Name: "Can add event"},
	{Codename: PermChangeEvent, Name: "Can change event"},
	{Codename: PermDeleteEvent, Name: "Can delete event"},
	{Codename: PermViewCategory, Name: "Can view category"},
	{Codename: PermAddCategory, Name: "Can add category"},
	{Codename: PermChangeCategory, Name: "Can change category"},
	{Codename: PermDeleteCategory, Name: "Can delete category"},
}
