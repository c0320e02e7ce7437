package service

import (
	"context"
	"fmt"

	"github.com/gatherly-dev/gatherly/internal/models"
	"gorm.io/gorm"
)

// Dashboard listing kinds.
const (
	ListAll        = "all"
	ListUpcoming   = "upcoming"
	ListPast       = "past"
	ListCategories = "categories"
)

// Counts is the aggregate header of the organizer and admin dashboards.
type Counts struct {
	TotalEvents     int64 `json:"total_events"`
	UpcomingEvents  int64 `json:"upcoming_events"`
	PastEvents      int64 `json:"past_events"`
	TotalCategories int64 `json:"total_categories"`
	TotalRSVPs      int64 `json:"total_rsvps"`
}

// Listing is the result of FilteredEvents: either events or categories, never both.
type Listing struct {
	Kind       string                     `json:"kind"`
	Events     []models.Event             `json:"events,omitempty"`
	Categories []models.CategoryWithCount `json:"categories,omitempty"`
}

// DashboardService computes read-only aggregates. Nothing is cached.
type DashboardService struct {
	db      *gorm.DB
	catalog *CatalogService
	clock   Clock
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db *gorm.DB, catalog *CatalogService, clock Clock) *DashboardService {
	return &DashboardService{db: db, catalog: catalog, clock: clock}
}

// Counts recomputes the dashboard totals from current state.
func (s *DashboardService) Counts(ctx context.Context) (*Counts, error) {
	db := s.db.WithContext(ctx)
	today := s.clock.today()
	var out Counts

	if err := db.Model(&models.Event{}).Count(&out.TotalEvents).Error; err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	if err := db.Model(&models.Event{}).Where("date >= ?", today).Count(&out.UpcomingEvents).Error; err != nil {
		return nil, fmt.Errorf("count upcoming events: %w", err)
	}
	if err := db.Model(&models.Event{}).Where("date < ?", today).Count(&out.PastEvents).Error; err != nil {
		return nil, fmt.Errorf("count past events: %w", err)
	}
	if err := db.Model(&models.Category{}).Count(&out.TotalCategories).Error; err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	if err := db.Model(&models.Participation{}).Count(&out.TotalRSVPs).Error; err != nil {
		return nil, fmt.Errorf("count rsvps: %w", err)
	}
	return &out, nil
}

// FilteredEvents lists events by kind, or categories with their event counts.
// An empty kind means all.
func (s *DashboardService) FilteredEvents(ctx context.Context, kind string) (*Listing, error) {
	if kind == "" {
		kind = ListAll
	}

	if kind == ListCategories {
		cats, err := s.catalog.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		return &Listing{Kind: kind, Categories: cats}, nil
	}

	today := s.clock.today()
	q := s.db.WithContext(ctx).Model(&models.Event{}).Preload("Category")
	switch kind {
	case ListAll:
	case ListUpcoming:
		q = q.Where("date >= ?", today)
	case ListPast:
		q = q.Where("date < ?", today)
	default:
		return nil, invalid(fmt.Sprintf("unknown listing type %q", kind))
	}

	var events []models.Event
	if err := q.Order("date").Order("time").Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	if err := annotateEvents(s.db.WithContext(ctx), today, events); err != nil {
		return nil, err
	}
	return &Listing{Kind: kind, Events: events}, nil
}
