// Package service holds the business rules: user directory, role authority,
// event catalog, RSVP engine and dashboard aggregation.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gatherly-dev/gatherly/internal/models"
	"gorm.io/gorm"
)

// Notifier receives side-effect notifications after a state change commits.
// Implementations must never block the caller for long or report failure.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, recipient *models.User, data map[string]interface{})
}

// Clock returns the current time. Services take one so "today" is testable.
type Clock func() time.Time

func (c Clock) today() models.Date {
	if c == nil {
		return models.NewDate(time.Now())
	}
	return models.NewDate(c())
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
