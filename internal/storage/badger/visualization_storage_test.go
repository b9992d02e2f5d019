package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
)

func newTestStorage(t *testing.T) interfaces.VisualizationStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{
		Path:           filepath.Join(t.TempDir(), "badger"),
		ResetOnStartup: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewVisualizationStorage(db, logger)
}

func histogramState(t *testing.T) models.VisState {
	t.Helper()
	state, err := models.NewBuilder().
		TimeRange("2015-09-19 06:31:44.000", "2015-09-23 18:31:44.000").
		Bucket(models.SchemaSegment, models.AggDateHistogram, "@timestamp").
		Build()
	require.NoError(t, err)
	return state
}

func TestVisualizationStorage_SaveAndGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	vis := &models.SavedVisualization{Title: "Visualization VerticalBarChart", State: histogramState(t)}
	require.NoError(t, storage.Save(ctx, vis))
	require.NotEmpty(t, vis.ID)

	got, err := storage.Get(ctx, vis.ID)
	require.NoError(t, err)
	assert.Equal(t, "Visualization VerticalBarChart", got.Title)
	assert.Equal(t, "Visualization VerticalBarChart", got.State.Title)
	assert.Equal(t, vis.State.Aggs, got.State.Aggs)
	assert.Equal(t, vis.State.TimeRange, got.State.TimeRange)

	byTitle, err := storage.GetByTitle(ctx, "Visualization VerticalBarChart")
	require.NoError(t, err)
	assert.Equal(t, vis.ID, byTitle.ID)
}

func TestVisualizationStorage_SaveSameTitleOverwrites(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first := &models.SavedVisualization{Title: "bars", State: histogramState(t)}
	require.NoError(t, storage.Save(ctx, first))

	updated := histogramState(t)
	updated.Aggs[0].Type = models.AggDerivative
	second := &models.SavedVisualization{Title: "bars", State: updated}
	require.NoError(t, storage.Save(ctx, second))

	assert.Equal(t, first.ID, second.ID)

	all, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.AggDerivative, all[0].State.Aggs[0].Type)
}

func TestVisualizationStorage_ListSortedByTitle(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, title := range []string{"zeta", "Alpha", "mid"} {
		require.NoError(t, storage.Save(ctx, &models.SavedVisualization{Title: title, State: histogramState(t)}))
	}

	all, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alpha", all[0].Title)
	assert.Equal(t, "mid", all[1].Title)
	assert.Equal(t, "zeta", all[2].Title)
}

func TestVisualizationStorage_NotFoundAndDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrVisualizationNotFound)

	_, err = storage.GetByTitle(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrVisualizationNotFound)

	vis := &models.SavedVisualization{Title: "to delete", State: histogramState(t)}
	require.NoError(t, storage.Save(ctx, vis))
	require.NoError(t, storage.Delete(ctx, vis.ID))

	_, err = storage.Get(ctx, vis.ID)
	assert.ErrorIs(t, err, interfaces.ErrVisualizationNotFound)
	assert.ErrorIs(t, storage.Delete(ctx, vis.ID), interfaces.ErrVisualizationNotFound)

	assert.Error(t, storage.Save(ctx, &models.SavedVisualization{Title: "   "}))
}
