package models

import "time"

// Event is something users can RSVP to.
type Event struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"index" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Date        Date      `gorm:"type:varchar(10);not null;index" json:"date"`
	Time        string    `gorm:"type:varchar(5);not null" json:"time"`
	Location    string    `gorm:"not null" json:"location"`
	CategoryID  uint      `gorm:"not null;index" json:"category_id"`
	Category    *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	AssetPath   string    `json:"asset,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	IsUpcoming       bool  `gorm:"-" json:"is_upcoming"`
	ParticipantCount int64 `gorm:"-" json:"participant_count"`
}

// Upcoming reports whether the event date is today or later.
func (e *Event) Upcoming(today Date) bool {
	return !e.Date.Before(today)
}
