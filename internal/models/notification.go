package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationKind identifies what triggered a notification
type NotificationKind string

const (
	NotificationRSVPConfirmation  NotificationKind = "rsvp_confirmation"
	NotificationAccountActivation NotificationKind = "account_activation"
)

// NotificationStatus represents the delivery state of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is an outbox row for a best-effort e-mail.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:text;primary_key" json:"id"`
	Kind      NotificationKind       `gorm:"not null;index" json:"kind"`
	UserID    uuid.UUID              `gorm:"type:text;index" json:"user_id"`
	Recipient string                 `gorm:"not null" json:"recipient"`
	Subject   string                 `gorm:"not null" json:"subject"`
	Body      string                 `gorm:"type:text" json:"body"`
	Context   map[string]interface{} `gorm:"serializer:json" json:"context,omitempty"`
	Status    NotificationStatus     `gorm:"not null;default:'pending';index" json:"status"`
	Attempts  int                    `gorm:"not null;default:0" json:"attempts"`
	Error     string                 `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	SentAt    *time.Time             `json:"sent_at,omitempty"`
}

// BeforeCreate hook to generate UUID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
