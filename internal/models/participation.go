package models

import (
	"time"

	"github.com/google/uuid"
)

// Participation is the RSVP edge between a user and an event.
// The composite primary key makes a (event, user) pair unique, and the
// foreign keys keep an edge from outliving its event or user.
type Participation struct {
	EventID   uint      `gorm:"primaryKey;autoIncrement:false" json:"event_id"`
	UserID    uuid.UUID `gorm:"type:text;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Event *Event `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
