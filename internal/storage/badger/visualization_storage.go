package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
)

// VisualizationStorage implements interfaces.VisualizationStorage for Badger
type VisualizationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVisualizationStorage creates a new VisualizationStorage instance
func NewVisualizationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VisualizationStorage {
	return &VisualizationStorage{
		db:     db,
		logger: logger,
	}
}

// Save inserts or replaces a visualization, matching existing entries by title
func (s *VisualizationStorage) Save(ctx context.Context, vis *models.SavedVisualization) error {
	title := strings.TrimSpace(vis.Title)
	if title == "" {
		return fmt.Errorf("visualization title is required")
	}
	vis.Title = title
	now := time.Now()

	existing, err := s.GetByTitle(ctx, title)
	switch {
	case err == nil:
		vis.ID = existing.ID
		vis.CreatedAt = existing.CreatedAt
	case errors.Is(err, interfaces.ErrVisualizationNotFound):
		if vis.ID == "" {
			vis.ID = uuid.New().String()
		}
		vis.CreatedAt = now
	default:
		return err
	}
	vis.UpdatedAt = now
	vis.State.Title = title

	if err := s.db.Store().Upsert(vis.ID, vis); err != nil {
		return fmt.Errorf("failed to save visualization: %w", err)
	}

	s.logger.Debug().Str("id", vis.ID).Str("title", title).Msg("Visualization saved")
	return nil
}

// Get returns a visualization by ID
func (s *VisualizationStorage) Get(ctx context.Context, id string) (*models.SavedVisualization, error) {
	var vis models.SavedVisualization
	err := s.db.Store().Get(id, &vis)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrVisualizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visualization: %w", err)
	}
	return &vis, nil
}

// GetByTitle returns a visualization by its exact title
func (s *VisualizationStorage) GetByTitle(ctx context.Context, title string) (*models.SavedVisualization, error) {
	var found []models.SavedVisualization
	if err := s.db.Store().Find(&found, badgerhold.Where("Title").Eq(strings.TrimSpace(title))); err != nil {
		return nil, fmt.Errorf("failed to find visualization by title: %w", err)
	}
	if len(found) == 0 {
		return nil, interfaces.ErrVisualizationNotFound
	}
	return &found[0], nil
}

// List returns all visualizations ordered by title
func (s *VisualizationStorage) List(ctx context.Context) ([]*models.SavedVisualization, error) {
	var all []models.SavedVisualization
	if err := s.db.Store().Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list visualizations: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Title) < strings.ToLower(all[j].Title)
	})

	result := make([]*models.SavedVisualization, len(all))
	for i := range all {
		result[i] = &all[i]
	}
	return result, nil
}

// Delete removes a visualization by ID
func (s *VisualizationStorage) Delete(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.SavedVisualization{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrVisualizationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete visualization: %w", err)
	}
	return nil
}
