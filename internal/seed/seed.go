// Package seed loads category and event reference data from TOML or YAML files.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the on-disk seed document.
type File struct {
	Categories []Category `toml:"categories" yaml:"categories"`
	Events     []Event    `toml:"events" yaml:"events"`
}

// Category is a seeded category.
type Category struct {
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"`
}

// Event is a seeded event; Category refers to a category by name.
type Event struct {
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"`
	Category    string `toml:"category" yaml:"category"`
	Date        string `toml:"date" yaml:"date"`
	Time        string `toml:"time" yaml:"time"`
	Location    string `toml:"location" yaml:"location"`
	Asset       string `toml:"asset" yaml:"asset"`
}

// Catalog is the subset of the catalog service the seeder writes through.
type Catalog interface {
	ListCategories(ctx context.Context) ([]models.CategoryWithCount, error)
	CreateCategory(ctx context.Context, actorID uuid.UUID, in service.CategoryInput) (*models.Category, error)
	ListEvents(ctx context.Context, f service.EventFilter) ([]models.Event, error)
	CreateEvent(ctx context.Context, actorID uuid.UUID, in service.EventInput) (*models.Event, error)
}

// Result counts what Apply created and skipped.
type Result struct {
	CategoriesCreated int
	EventsCreated     int
	EventsSkipped     int
}

// Load reads a seed file, choosing the decoder by extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data in the format named by ext (".toml", ".yaml" or ".yml").
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
	return &f, nil
}

// Apply creates missing categories (matched by name, case-insensitively) and
// events (matched by name and date). Running it twice is harmless.
func Apply(ctx context.Context, catalog Catalog, actorID uuid.UUID, f *File) (*Result, error) {
	existing, err := catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]uint, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c.ID
	}

	res := &Result{}
	for _, c := range f.Categories {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if _, ok := byName[key]; ok {
			continue
		}
		cat, err := catalog.CreateCategory(ctx, actorID, service.CategoryInput{Name: c.Name, Description: c.Description})
		if err != nil {
			return res, fmt.Errorf("category %q: %w", c.Name, err)
		}
		byName[key] = cat.ID
		res.CategoriesCreated++
	}

	for _, e := range f.Events {
		catID, ok := byName[strings.ToLower(strings.TrimSpace(e.Category))]
		if !ok {
			return res, fmt.Errorf("event %q: unknown category %q", e.Name, e.Category)
		}

		dupes, err := catalog.ListEvents(ctx, service.EventFilter{
			Search:     e.Name,
			CategoryID: catID,
			StartDate:  e.Date,
			EndDate:    e.Date,
		})
		if err != nil {
			return res, fmt.Errorf("event %q: %w", e.Name, err)
		}
		if containsName(dupes, e.Name) {
			res.EventsSkipped++
			continue
		}

		_, err = catalog.CreateEvent(ctx, actorID, service.EventInput{
			Name:        e.Name,
			Description: e.Description,
			Date:        e.Date,
			Time:        e.Time,
			Location:    e.Location,
			CategoryID:  catID,
			AssetPath:   e.Asset,
		})
		if err != nil {
			return res, fmt.Errorf("event %q: %w", e.Name, err)
		}
		res.EventsCreated++
	}
	return res, nil
}

func containsName(events []models.Event, name string) bool {
	for _, e := range events {
		if strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
