package pageobject

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/browser"
	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/extract"
	"github.com/ternarybob/vizcheck/internal/models"
	"github.com/ternarybob/vizcheck/internal/retry"
	"github.com/ternarybob/vizcheck/internal/server"
)

const (
	fromTime = "2015-09-19 06:31:44.000"
	toTime   = "2015-09-23 18:31:44.000"
)

func newTestPage(t *testing.T) *Visualize {
	t.Helper()
	logger := arbor.NewLogger()

	cfg := common.NewDefaultConfig()
	cfg.Fixture.RenderDelay = "0s"
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")

	srv, err := server.New(cfg, logger)
	require.NoError(t, err)
	baseURL, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	session := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, logger)
	wait := retry.Policy{MaxAttempts: 5, Interval: 10 * time.Millisecond, Timeout: 2 * time.Second}
	return New(session, baseURL, logger, wait)
}

func openHistogram(t *testing.T, ctx context.Context, v *Visualize) {
	t.Helper()
	require.NoError(t, v.Navigate(ctx, "visualize/new"))
	require.NoError(t, v.ClickVerticalBarChart(ctx))
	require.NoError(t, v.ClickNewSearch(ctx))
	require.NoError(t, v.SetRange(ctx, fromTime, toTime))
	require.NoError(t, v.ClickBucket(ctx, models.SchemaSegment))
	require.NoError(t, v.SelectAggregation(ctx, models.AggDateHistogram))
	require.NoError(t, v.SelectField(ctx, "@timestamp"))
	require.NoError(t, v.ClickGo(ctx))
	require.NoError(t, v.WaitUntilIdle(ctx))
}

func TestVisualize_RenderAndExtract(t *testing.T) {
	v := newTestPage(t)
	ctx := context.Background()

	require.NoError(t, v.Navigate(ctx, "visualize/edit?type=histogram"))
	enabled, err := v.IsInspectorEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled, "inspector is disabled before the first render")

	openHistogram(t, ctx, v)

	series, err := v.ExtractSeries(ctx)
	require.NoError(t, err)
	require.Len(t, series, 24)
	assert.Equal(t, []float64{37, 202, 740, 1437}, series[:4])

	legend, err := v.ExtractLegend(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Count"}, legend)

	enabled, err = v.IsInspectorEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, v.OpenInspector(ctx))
	rows, err := v.ExtractTable(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, models.TableRow{Label: "2015-09-20 00:00", Value: "37"}, rows[0])
}

func TestVisualize_SaveAndLoad(t *testing.T) {
	v := newTestPage(t)
	ctx := context.Background()
	openHistogram(t, ctx, v)

	toast, err := v.Save(ctx, "Visualization VerticalBarChart")
	require.NoError(t, err)
	assert.Equal(t, "Saved 'Visualization VerticalBarChart'", toast)

	require.NoError(t, v.Load(ctx, "Visualization VerticalBarChart"))
	title, err := v.BreadcrumbTitle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Visualization VerticalBarChart", title)

	err = v.Load(ctx, "Never Saved")
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
}

func TestVisualize_ToggleOpenEditorOnlyClicksWhenNeeded(t *testing.T) {
	v := newTestPage(t)
	ctx := context.Background()
	openHistogram(t, ctx, v)

	isOpen := func(id string) string {
		html, err := v.session.HTML(ctx)
		require.NoError(t, err)
		doc, err := extract.Parse(html)
		require.NoError(t, err)
		return doc.Find(TestSubj("visEditorAgg" + id)).AttrOr("data-open", "")
	}

	require.NoError(t, v.ToggleOpenEditor(ctx, 1, true))
	assert.Equal(t, "true", isOpen("1"))

	require.NoError(t, v.ToggleOpenEditor(ctx, 2, false))
	assert.Equal(t, "false", isOpen("2"))
	require.NoError(t, v.ToggleOpenEditor(ctx, 2, false))
	assert.Equal(t, "false", isOpen("2"))

	// The metric editor is now the last one open
	require.NoError(t, v.SelectAggregation(ctx, models.AggDerivative))
	require.NoError(t, v.ClickGo(ctx))
	require.NoError(t, v.WaitUntilIdle(ctx))
	legend, err := v.ExtractLegend(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Derivative of Count"}, legend)

	assert.Error(t, v.ToggleOpenEditor(ctx, 9, true))
}

func TestVisualize_EditorErrorsSurface(t *testing.T) {
	v := newTestPage(t)
	ctx := context.Background()

	require.NoError(t, v.Navigate(ctx, "visualize/edit?type=histogram"))
	err := v.ClickGo(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEditor)

	_, err = v.Save(ctx, "")
	assert.ErrorIs(t, err, ErrEditor)
}

func TestVisualize_WaitUntilIdleStopsWithoutChart(t *testing.T) {
	v := newTestPage(t)
	ctx := context.Background()

	require.NoError(t, v.Navigate(ctx, "visualize/edit?type=histogram"))
	start := time.Now()
	err := v.WaitUntilIdle(ctx)
	assert.ErrorIs(t, err, extract.ErrNoChart)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Less(t, time.Since(start), time.Second)
}

func TestVisualize_ReadsStopOnRenderError(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body data-page-id="p1">
<div class="visualization" data-test-subj="visualizationLoader" data-render-state="error">
<p data-test-subj="visualizationError">Date Histogram needs a date field</p>
</div></body></html>`))
	}))
	t.Cleanup(broken.Close)

	logger := arbor.NewLogger()
	session := browser.NewHTTPSession(browser.Options{Timeout: 5 * time.Second}, logger)
	wait := retry.Policy{MaxAttempts: 5, Interval: 10 * time.Millisecond, Timeout: 2 * time.Second}
	v := New(session, broken.URL, logger, wait)
	ctx := context.Background()
	require.NoError(t, v.Navigate(ctx, broken.URL+"/app/visualize/edit"))

	slow := retry.Policy{MaxAttempts: 10, Interval: 200 * time.Millisecond}
	start := time.Now()
	attempts := 0
	err := retry.Do(ctx, slow, func(ctx context.Context) error {
		attempts++
		_, err := v.ExtractLegend(ctx)
		return err
	})
	assert.ErrorIs(t, err, extract.ErrRenderFailed)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Contains(t, err.Error(), "Date Histogram needs a date field")
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)

	_, err = v.ExtractSeries(ctx)
	assert.ErrorIs(t, err, extract.ErrRenderFailed)
}
