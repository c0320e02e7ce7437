package models

import "time"

// Category groups events. Deleting a category deletes its events.
type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"index" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Events      []Event   `gorm:"foreignKey:CategoryID" json:"events,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryWithCount is a category annotated with its number of events.
type CategoryWithCount struct {
	Category
	EventCount int64 `json:"event_count"`
}
