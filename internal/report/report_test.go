package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/scenario"
)

// stubSession only implements what the failure hook reads
type stubSession struct {
	interfaces.Session
	png  []byte
	err  error
	html string
}

func (s *stubSession) Screenshot(context.Context) ([]byte, error) {
	return s.png, s.err
}

func (s *stubSession) HTML(context.Context) (string, error) {
	return s.html, nil
}

func (s *stubSession) URL(context.Context) (string, error) {
	return "http://127.0.0.1:5620/app/visualize/edit", nil
}

func sampleReport() *scenario.Report {
	return &scenario.Report{
		RunID:   "run-1",
		Started: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		Passed:  1,
		Failed:  1,
		Results: []*scenario.Result{
			{
				Scenario: "vertical bar chart",
				Passed:   true,
				Cases:    []scenario.CaseResult{{Name: "should show correct chart", Passed: true}},
			},
			{
				Scenario: "vertical bar with derivative",
				Cases: []scenario.CaseResult{{
					Name:  "should show correct series",
					Error: "legend mismatch\n  observed: [Count]\n  expected: [Derivative of Count]",
				}},
			},
		},
	}
}

func TestWriter_WritesAllFormats(t *testing.T) {
	started := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	w, err := NewWriter(t.TempDir(), started, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "run-20261018-093000", filepath.Base(w.Dir()))

	require.NoError(t, w.Write(sampleReport()))

	data, err := os.ReadFile(filepath.Join(w.Dir(), ReportJSON))
	require.NoError(t, err)
	var decoded scenario.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded.Failed)
	require.Len(t, decoded.Results, 2)
	assert.Contains(t, decoded.Results[1].Cases[0].Error, "Derivative of Count")

	page, err := os.ReadFile(filepath.Join(w.Dir(), ReportHTML))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<table>")
	assert.Contains(t, string(page), "<h2")
	assert.Contains(t, string(page), "expected: [Derivative of Count]")
}

func TestMarkdown_SetupFailureRow(t *testing.T) {
	rep := &scenario.Report{
		Failed: 1,
		Results: []*scenario.Result{{
			Scenario: "vertical bar with split series",
			Err:      errors.New("setup failed"),
			Error:    `setup failed at step "click go": boom`,
		}},
	}

	md := Markdown(rep)
	assert.Contains(t, md, "| vertical bar with split series | setup | FAIL |")
	assert.Contains(t, md, `setup failed at step "click go": boom`)
}

func TestMarkdown_NoFailuresSection(t *testing.T) {
	rep := sampleReport()
	rep.Results = rep.Results[:1]
	rep.Failed = 0
	assert.NotContains(t, Markdown(rep), "## Failures")
}

func TestFailureHook(t *testing.T) {
	w, err := NewWriter(t.TempDir(), time.Now(), arbor.NewLogger())
	require.NoError(t, err)

	page := `<html><body><h1>Visualize</h1><ul data-test-subj="visLegend"><li>200</li><li>404</li></ul></body></html>`
	hook := w.FailureHook(&stubSession{png: []byte("png"), html: page}, true)
	hook(context.Background(), "vertical bar chart", "should show correct chart", errors.New("mismatch"))

	data, err := os.ReadFile(filepath.Join(w.Dir(), ScreenshotsDir, "vertical-bar-chart_should-show-correct-chart.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	snapshot, err := os.ReadFile(filepath.Join(w.Dir(), SnapshotsDir, "vertical-bar-chart_should-show-correct-chart.md"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "# Visualize")
	assert.Contains(t, string(snapshot), "- 404")
	assert.Contains(t, string(snapshot), "/app/visualize/edit")
}

func TestFailureHook_SnapshotWithoutScreenshots(t *testing.T) {
	w, err := NewWriter(t.TempDir(), time.Now(), arbor.NewLogger())
	require.NoError(t, err)

	hook := w.FailureHook(&stubSession{err: interfaces.ErrUnsupported, html: "<p>no chart</p>"}, true)
	hook(context.Background(), "vertical bar with derivative", "setup", errors.New("boom"))

	_, err = os.Stat(filepath.Join(w.Dir(), ScreenshotsDir, "vertical-bar-with-derivative_setup.png"))
	assert.True(t, os.IsNotExist(err))

	snapshot, err := os.ReadFile(filepath.Join(w.Dir(), SnapshotsDir, "vertical-bar-with-derivative_setup.md"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "no chart")
}

func TestFailureHook_ScreenshotsDisabledStillSnapshots(t *testing.T) {
	w, err := NewWriter(t.TempDir(), time.Now(), arbor.NewLogger())
	require.NoError(t, err)

	hook := w.FailureHook(&stubSession{png: []byte("png"), html: "<p>bars</p>"}, false)
	hook(context.Background(), "vertical bar chart", "should show correct data", errors.New("mismatch"))

	_, err = os.Stat(filepath.Join(w.Dir(), ScreenshotsDir, "vertical-bar-chart_should-show-correct-data.png"))
	assert.True(t, os.IsNotExist(err))

	snapshot, err := os.ReadFile(filepath.Join(w.Dir(), SnapshotsDir, "vertical-bar-chart_should-show-correct-data.md"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "bars")
}
