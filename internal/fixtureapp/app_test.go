package fixtureapp

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/browser"
	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/extract"
	"github.com/ternarybob/vizcheck/internal/storage/badger"
)

func newTestApp(t *testing.T, renderDelay time.Duration) string {
	t.Helper()
	logger := arbor.NewLogger()

	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ds, err := DefaultDataset()
	require.NoError(t, err)

	app, err := New(ds, badger.NewVisualizationStorage(db, logger), logger, renderDelay)
	require.NoError(t, err)

	r := chi.NewRouter()
	app.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func openEditor(t *testing.T, ctx context.Context, s *browser.HTTPSession, baseURL string) {
	t.Helper()
	require.NoError(t, s.Navigate(ctx, baseURL+"/app/visualize/new"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=visType-histogram]"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=newSearch]"))
	require.NoError(t, s.SetValue(ctx, "[data-test-subj=superDatePickerAbsoluteStart]", fromTime))
	require.NoError(t, s.SetValue(ctx, "[data-test-subj=superDatePickerAbsoluteEnd]", toTime))
	require.NoError(t, s.Click(ctx, "[data-test-subj=superDatePickerApplyTimeButton]"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=visEditorAddBucket-segment]"))
	require.NoError(t, s.SetValue(ctx, "#agg-2-type", "date_histogram"))
	require.NoError(t, s.SetValue(ctx, "#agg-2-field", "@timestamp"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=visualizeEditorRenderButton]"))
}

func document(t *testing.T, ctx context.Context, s *browser.HTTPSession) string {
	t.Helper()
	html, err := s.HTML(ctx)
	require.NoError(t, err)
	return html
}

func TestEditor_RenderInspectAndPaginate(t *testing.T) {
	baseURL := newTestApp(t, 0)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	openEditor(t, ctx, s, baseURL)

	doc, err := extract.Parse(document(t, ctx, s))
	require.NoError(t, err)
	require.NoError(t, extract.Ready(doc))
	series, err := extract.Series(doc)
	require.NoError(t, err)
	assert.Equal(t, expectedCounts, series)
	assert.Equal(t, []string{"Count"}, extract.Legend(doc))

	require.NoError(t, s.Click(ctx, "[data-test-subj=openInspectorButton]"))
	doc, err = extract.Parse(document(t, ctx, s))
	require.NoError(t, err)
	rows, err := extract.Table(doc)
	require.NoError(t, err)
	require.Len(t, rows, RowsPerPage)
	assert.Equal(t, "2015-09-20 00:00", rows[0].Label)
	assert.Equal(t, "1,437", rows[3].Value)

	require.NoError(t, s.Click(ctx, "[data-test-subj=pagination-button-2]"))
	doc, err = extract.Parse(document(t, ctx, s))
	require.NoError(t, err)
	rows, err = extract.Table(doc)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2015-09-22 21:00", rows[3].Label)
	assert.Equal(t, "29", rows[3].Value)
}

func TestEditor_InvalidRenderKeepsChart(t *testing.T) {
	baseURL := newTestApp(t, 0)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, baseURL+"/app/visualize/edit?type=histogram"))
	assert.Error(t, s.Click(ctx, "[data-test-subj=openInspectorButton]"), "inspector is disabled before the first render")

	require.NoError(t, s.Click(ctx, "[data-test-subj=visualizeEditorRenderButton]"))
	require.NoError(t, s.WaitVisible(ctx, "[data-test-subj=visEditorError]"))

	html := document(t, ctx, s)
	assert.Contains(t, html, "invalid visualization")
	assert.Contains(t, html, `data-test-subj="visualizationEmpty"`)
}

func TestEditor_SaveAndLoad(t *testing.T) {
	baseURL := newTestApp(t, 0)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	openEditor(t, ctx, s, baseURL)

	require.NoError(t, s.Click(ctx, "[data-test-subj=visualizeSaveButton]"))
	require.NoError(t, s.SetValue(ctx, "[data-test-subj=savedObjectTitle]", "Visualization VerticalBarChart"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=confirmSaveSavedObjectButton]"))

	u, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Contains(t, u, "/app/visualize/edit/")
	html := document(t, ctx, s)
	assert.Contains(t, html, "Saved &#39;Visualization VerticalBarChart&#39;")

	require.NoError(t, s.Navigate(ctx, baseURL+"/app/visualize"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=visListingTitleLink-Visualization-VerticalBarChart]"))

	doc, err := extract.Parse(document(t, ctx, s))
	require.NoError(t, err)
	assert.Equal(t, "Visualization VerticalBarChart", doc.Find("[data-test-subj=breadcrumbPageTitle]").Text())
	series, err := extract.Series(doc)
	require.NoError(t, err)
	assert.Equal(t, expectedCounts, series)
}

func TestEditor_SaveRequiresTitle(t *testing.T) {
	baseURL := newTestApp(t, 0)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	openEditor(t, ctx, s, baseURL)
	require.NoError(t, s.Click(ctx, "[data-test-subj=visualizeSaveButton]"))
	require.NoError(t, s.Click(ctx, "[data-test-subj=confirmSaveSavedObjectButton]"))
	assert.Contains(t, document(t, ctx, s), "title is required")
}

func TestEditor_RenderDelayStartsPending(t *testing.T) {
	baseURL := newTestApp(t, 500*time.Millisecond)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	openEditor(t, ctx, s, baseURL)

	doc, err := extract.Parse(document(t, ctx, s))
	require.NoError(t, err)
	assert.ErrorIs(t, extract.Ready(doc), extract.ErrNotRendered)

	// Bars are drawn flat until the script grows them
	series, err := extract.Series(doc)
	require.NoError(t, err)
	assert.Len(t, series, 24)
	assert.NotEqual(t, expectedCounts, series)
	assert.Contains(t, document(t, ctx, s), "setTimeout")
}

func TestEditor_UnknownRoutes(t *testing.T) {
	baseURL := newTestApp(t, 0)
	s := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, arbor.NewLogger())
	ctx := context.Background()

	assert.Error(t, s.Navigate(ctx, baseURL+"/app/visualize/new/pie"))
	assert.Error(t, s.Navigate(ctx, baseURL+"/app/visualize/edit/missing"))
	require.NoError(t, s.Navigate(ctx, baseURL+"/"))
	assert.Contains(t, document(t, ctx, s), `data-test-subj="visualizationListingEmpty"`)
}

func TestEditorState_Dispatch(t *testing.T) {
	st := newEditorState()
	assert.True(t, st.showBucketChooser())
	assert.Len(t, st.bucketChoices(), 2)

	require.NoError(t, st.dispatch("bucket:segment"))
	assert.False(t, st.showBucketChooser())
	assert.Error(t, st.dispatch("bucket:segment"), "second X-Axis")

	require.NoError(t, st.dispatch(ActionAddBucket))
	assert.Equal(t, 1, len(st.bucketChoices()), "only Split Series remains")

	require.NoError(t, st.dispatch("toggleOpen:2"))
	agg, _ := st.Vis.Agg(2)
	assert.False(t, agg.Open)

	require.NoError(t, st.dispatch("toggleEnabled:2"))
	assert.False(t, agg.Enabled)

	assert.Error(t, st.dispatch("toggleOpen:9"))
	assert.Error(t, st.dispatch("page:-1"))
	assert.Error(t, st.dispatch(ActionInspect), "nothing rendered yet")
	assert.Error(t, st.dispatch("explode"))

	round, err := decodeEditorState(st.encode())
	require.NoError(t, err)
	assert.Equal(t, st.Vis, round.Vis)
}
