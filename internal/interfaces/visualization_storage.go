package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/vizcheck/internal/models"
)

// ErrVisualizationNotFound is returned when no saved visualization matches
var ErrVisualizationNotFound = errors.New("visualization not found")

// VisualizationStorage persists saved visualizations
type VisualizationStorage interface {
	// Save inserts or replaces a visualization. Titles are unique; saving an
	// existing title overwrites it and keeps its ID.
	Save(ctx context.Context, vis *models.SavedVisualization) error

	// Get returns a visualization by ID
	Get(ctx context.Context, id string) (*models.SavedVisualization, error)

	// GetByTitle returns a visualization by its exact title
	GetByTitle(ctx context.Context, title string) (*models.SavedVisualization, error)

	// List returns all visualizations ordered by title
	List(ctx context.Context) ([]*models.SavedVisualization, error)

	// Delete removes a visualization by ID
	Delete(ctx context.Context, id string) error
}
