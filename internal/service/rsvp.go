package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RSVPService manages the participation relation between users and events.
type RSVPService struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *metrics.Metrics
	clock    Clock
	logger   *slog.Logger
}

// NewRSVPService creates a new RSVPService.
func NewRSVPService(db *gorm.DB, notifier Notifier, m *metrics.Metrics, clock Clock, logger *slog.Logger) *RSVPService {
	return &RSVPService{db: db, notifier: notifier, metrics: m, clock: clock, logger: logger}
}

// RSVP adds the user to the event's participants and queues a confirmation.
// A second RSVP for the same pair returns ErrAlreadyRSVPd and changes nothing.
func (s *RSVPService) RSVP(ctx context.Context, user *models.User, eventID uint) error {
	var event models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Holding the event row keeps a concurrent delete from committing
		// between the check and the insert.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID).Error; err != nil {
			return notFoundOr(err)
		}

		// The composite primary key decides concurrent attempts; losing the
		// insert race is the duplicate outcome.
		edge := models.Participation{EventID: event.ID, UserID: user.ID}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		switch {
		case isDuplicateKey(result.Error):
			return ErrAlreadyRSVPd
		case isForeignKeyViolation(result.Error):
			return ErrNotFound
		case result.Error != nil:
			return fmt.Errorf("create participation: %w", result.Error)
		case result.RowsAffected == 0:
			return ErrAlreadyRSVPd
		}
		return nil
	})
	if errors.Is(err, ErrAlreadyRSVPd) {
		s.metrics.RSVPDuplicate()
	}
	if err != nil {
		return err
	}

	s.metrics.RSVPAdded()
	s.logger.Info("RSVP recorded", "event_id", event.ID, "user_id", user.ID)

	s.notifier.Notify(ctx, models.NotificationRSVPConfirmation, user, map[string]interface{}{
		"event_id":   event.ID,
		"event_name": event.Name,
		"event_date": event.Date.String(),
		"event_time": event.Time,
		"location":   event.Location,
	})
	return nil
}

// CancelRSVP removes the user from the event. Cancelling a missing RSVP is a no-op.
func (s *RSVPService) CancelRSVP(ctx context.Context, user *models.User, eventID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	result := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, user.ID).
		Delete(&models.Participation{})
	if result.Error != nil {
		return fmt.Errorf("delete participation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.metrics.RSVPCancelled()
		s.logger.Info("RSVP cancelled", "event_id", eventID, "user_id", user.ID)
	}
	return nil
}

// IsParticipating reports whether the user has RSVP'd to the event.
func (s *RSVPService) IsParticipating(ctx context.Context, userID uuid.UUID, eventID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}

	err := s.db.WithContext(ctx).Model(&models.Participation{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListParticipants returns the users attending an event in RSVP order.
func (s *RSVPService) ListParticipants(ctx context.Context, eventID uint) ([]models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN participations ON participations.user_id = users.id").
		Where("participations.event_id = ?", eventID).
		Order("participations.created_at").
		Order("users.username").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ListParticipationsOf returns the events the user has RSVP'd to, ordered by date.
func (s *RSVPService) ListParticipationsOf(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Preload("Category").
		Joins("JOIN participations ON participations.event_id = events.id").
		Where("participations.user_id = ?", userID).
		Order("events.date").
		Order("events.time").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if err := annotateEvents(s.db.WithContext(ctx), s.clock.today(), events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountParticipants returns the number of participation edges for an event.
func (s *RSVPService) CountParticipants(ctx context.Context, eventID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Participation{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, err
}
