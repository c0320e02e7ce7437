package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gatherly-dev/gatherly/internal/audit"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService manages categories and events.
type CatalogService struct {
	db    *gorm.DB
	clock Clock
}

// NewCatalogService creates a new CatalogService. A nil clock means time.Now.
func NewCatalogService(db *gorm.DB, clock Clock) *CatalogService {
	return &CatalogService{db: db, clock: clock}
}

// CategoryInput holds the editable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
}

// EventInput holds the editable fields of an event.
type EventInput struct {
	Name        string
	Description string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM
	Location    string
	CategoryID  uint
	AssetPath   string
}

// EventFilter narrows ListEvents. Zero fields don't filter; set fields are AND-ed.
type EventFilter struct {
	Search     string // case-insensitive match on name or location
	CategoryID uint
	StartDate  string // inclusive, YYYY-MM-DD
	EndDate    string // inclusive, YYYY-MM-DD
}

// --- Categories ---

// CreateCategory validates and stores a new category.
func (s *CatalogService) CreateCategory(ctx context.Context, actorID uuid.UUID, in CategoryInput) (*models.Category, error) {
	if blank(in.Name) {
		return nil, invalid("category name is required")
	}
	cat := models.Category{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug.Make(in.Name),
		Description: in.Description,
	}
	if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	audit.LogAction(s.db, actorID, audit.ActionCreateCategory, fmt.Sprintf("category:%d", cat.ID), map[string]interface{}{
		"name": cat.Name,
	})
	return &cat, nil
}

// GetCategory returns a category with its event count.
func (s *CatalogService) GetCategory(ctx context.Context, id uint) (*models.CategoryWithCount, error) {
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	return &models.CategoryWithCount{Category: cat, EventCount: count}, nil
}

// UpdateCategory replaces a category's name and description.
func (s *CatalogService) UpdateCategory(ctx context.Context, actorID uuid.UUID, id uint, in CategoryInput) (*models.Category, error) {
	if blank(in.Name) {
		return nil, invalid("category name is required")
	}
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	cat.Name = strings.TrimSpace(in.Name)
	cat.Slug = slug.Make(in.Name)
	cat.Description = in.Description
	if err := s.db.WithContext(ctx).Save(&cat).Error; err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	audit.LogAction(s.db, actorID, audit.ActionUpdateCategory, fmt.Sprintf("category:%d", cat.ID), map[string]interface{}{
		"name": cat.Name,
	})
	return &cat, nil
}

// DeleteCategory removes the category, all its events and their participation
// edges in one transaction. It returns the number of events removed.
func (s *CatalogService) DeleteCategory(ctx context.Context, actorID uuid.UUID, id uint) (int, error) {
	var removed int
	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := tx.First(&cat, id).Error; err != nil {
			return notFoundOr(err)
		}
		name = cat.Name

		var eventIDs []uint
		if err := tx.Model(&models.Event{}).Where("category_id = ?", id).Pluck("id", &eventIDs).Error; err != nil {
			return err
		}

		if len(eventIDs) > 0 {
			if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.Participation{}).Error; err != nil {
				return fmt.Errorf("delete participations: %w", err)
			}
			if err := tx.Where("category_id = ?", id).Delete(&models.Event{}).Error; err != nil {
				return fmt.Errorf("delete events: %w", err)
			}
		}

		if err := tx.Delete(&cat).Error; err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		removed = len(eventIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}

	audit.LogAction(s.db, actorID, audit.ActionDeleteCategory, fmt.Sprintf("category:%d", id), map[string]interface{}{
		"name":           name,
		"events_deleted": removed,
	})
	return removed, nil
}

// ListCategories returns every category annotated with its event count.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.CategoryWithCount, error) {
	var out []models.CategoryWithCount
	err := s.db.WithContext(ctx).
		Model(&models.Category{}).
		Select("categories.*, COUNT(events.id) AS event_count").
		Joins("LEFT JOIN events ON events.category_id = categories.id").
		Group("categories.id").
		Order("categories.name").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Events ---

func (s *CatalogService) validateEvent(ctx context.Context, in EventInput) (models.Date, string, error) {
	if blank(in.Name) {
		return models.Date{}, "", invalid("event name is required")
	}
	if blank(in.Location) {
		return models.Date{}, "", invalid("event location is required")
	}
	date, err := models.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return models.Date{}, "", invalid(err.Error())
	}
	clock, err := normalizeTime(in.Time)
	if err != nil {
		return models.Date{}, "", err
	}
	if in.CategoryID == 0 {
		return models.Date{}, "", invalid("category is required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&count).Error; err != nil {
		return models.Date{}, "", err
	}
	if count == 0 {
		return models.Date{}, "", invalid(fmt.Sprintf("category %d does not exist", in.CategoryID))
	}
	return date, clock, nil
}

func normalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", invalid(fmt.Sprintf("invalid time %q: expected HH:MM", s))
}

// CreateEvent validates and stores a new event.
func (s *CatalogService) CreateEvent(ctx context.Context, actorID uuid.UUID, in EventInput) (*models.Event, error) {
	date, clock, err := s.validateEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	ev := models.Event{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug.Make(in.Name),
		Description: in.Description,
		Date:        date,
		Time:        clock,
		Location:    strings.TrimSpace(in.Location),
		CategoryID:  in.CategoryID,
		AssetPath:   in.AssetPath,
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	audit.LogAction(s.db, actorID, audit.ActionCreateEvent, fmt.Sprintf("event:%d", ev.ID), map[string]interface{}{
		"name": ev.Name,
		"date": ev.Date.String(),
	})
	return s.GetEvent(ctx, ev.ID)
}

// GetEvent returns an event with its category and participant count.
func (s *CatalogService) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var ev models.Event
	if err := s.db.WithContext(ctx).Preload("Category").First(&ev, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	events := []models.Event{ev}
	if err := s.annotate(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// UpdateEvent replaces all editable fields of an event.
func (s *CatalogService) UpdateEvent(ctx context.Context, actorID uuid.UUID, id uint, in EventInput) (*models.Event, error) {
	var ev models.Event
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	date, clock, err := s.validateEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	ev.Name = strings.TrimSpace(in.Name)
	ev.Slug = slug.Make(in.Name)
	ev.Description = in.Description
	ev.Date = date
	ev.Time = clock
	ev.Location = strings.TrimSpace(in.Location)
	ev.CategoryID = in.CategoryID
	ev.AssetPath = in.AssetPath
	ev.Category = nil
	if err := s.db.WithContext(ctx).Save(&ev).Error; err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	audit.LogAction(s.db, actorID, audit.ActionUpdateEvent, fmt.Sprintf("event:%d", ev.ID), map[string]interface{}{
		"name": ev.Name,
	})
	return s.GetEvent(ctx, ev.ID)
}

// DeleteEvent removes an event and its participation edges atomically.
func (s *CatalogService) DeleteEvent(ctx context.Context, actorID uuid.UUID, id uint) error {
	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev models.Event
		if err := tx.First(&ev, id).Error; err != nil {
			return notFoundOr(err)
		}
		name = ev.Name
		if err := tx.Where("event_id = ?", id).Delete(&models.Participation{}).Error; err != nil {
			return fmt.Errorf("delete participations: %w", err)
		}
		return tx.Delete(&ev).Error
	})
	if err != nil {
		return err
	}
	audit.LogAction(s.db, actorID, audit.ActionDeleteEvent, fmt.Sprintf("event:%d", id), map[string]interface{}{
		"name": name,
	})
	return nil
}

// ListEvents returns events matching every set filter, ordered by date and time.
func (s *CatalogService) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Model(&models.Event{}).Preload("Category")

	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(location) LIKE ?)", like, like)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.StartDate != "" {
		start, err := models.ParseDate(f.StartDate)
		if err != nil {
			return nil, invalid(err.Error())
		}
		q = q.Where("date >= ?", start)
	}
	if f.EndDate != "" {
		end, err := models.ParseDate(f.EndDate)
		if err != nil {
			return nil, invalid(err.Error())
		}
		q = q.Where("date <= ?", end)
	}

	var events []models.Event
	if err := q.Order("date").Order("time").Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// Home returns the most recently created events, for the home page.
func (s *CatalogService) Home(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 9
	}
	var events []models.Event
	err := s.db.WithContext(ctx).Preload("Category").Order("created_at DESC").Order("id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// annotate fills the derived IsUpcoming and ParticipantCount fields in place.
func (s *CatalogService) annotate(ctx context.Context, events []models.Event) error {
	return annotateEvents(s.db.WithContext(ctx), s.clock.today(), events)
}

func annotateEvents(db *gorm.DB, today models.Date, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]uint, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}

	var rows []struct {
		EventID uint
		Count   int64
	}
	err := db.Model(&models.Participation{}).
		Select("event_id, COUNT(*) AS count").
		Where("event_id IN ?", ids).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.EventID] = r.Count
	}

	for i := range events {
		events[i].IsUpcoming = events[i].Upcoming(today)
		events[i].ParticipantCount = counts[events[i].ID]
	}
	return nil
}
