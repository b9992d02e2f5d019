// Package report writes run results and failure screenshots to the results directory
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/scenario"
)

const (
	ReportJSON     = "report.json"
	ReportMarkdown = "report.md"
	ReportHTML     = "report.html"
	ScreenshotsDir = "screenshots"
	SnapshotsDir   = "snapshots"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Writer owns one run directory under the results dir
type Writer struct {
	dir    string
	logger arbor.ILogger
}

// NewWriter creates results/run-<timestamp>
func NewWriter(resultsDir string, started time.Time, logger arbor.ILogger) (*Writer, error) {
	dir := filepath.Join(resultsDir, "run-"+started.Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the run directory
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores the report as JSON, Markdown and HTML
func (w *Writer) Write(rep *scenario.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, ReportJSON), data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	summary := Markdown(rep)
	if err := os.WriteFile(filepath.Join(w.dir, ReportMarkdown), []byte(summary), 0644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}

	page, err := HTML(summary)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.dir, ReportHTML), page, 0644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}

	w.logger.Info().Str("dir", w.dir).Int("failed", rep.Failed).Msg("Report written")
	return nil
}

// FailureHook captures the page on every failure: always a Markdown snapshot
// of the document, plus a PNG screenshot when enabled and the driver supports it.
func (w *Writer) FailureHook(session interfaces.Session, screenshots bool) scenario.FailureHook {
	return func(ctx context.Context, sc, name string, _ error) {
		base := fileName(sc, name)
		if screenshots {
			w.screenshot(ctx, session, base)
		}
		w.snapshot(ctx, session, base)
	}
}

func (w *Writer) screenshot(ctx context.Context, session interfaces.Session, base string) {
	png, err := session.Screenshot(ctx)
	if errors.Is(err, interfaces.ErrUnsupported) {
		w.logger.Debug().Str("capture", base).Msg("Driver cannot capture screenshots")
		return
	}
	if err != nil {
		w.logger.Warn().Err(err).Str("capture", base).Msg("Failed to capture screenshot")
		return
	}
	if path, err := w.save(ScreenshotsDir, base+".png", png); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to write screenshot")
	} else {
		w.logger.Info().Str("path", path).Msg("Failure screenshot saved")
	}
}

func (w *Writer) snapshot(ctx context.Context, session interfaces.Session, base string) {
	page, err := session.HTML(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Str("capture", base).Msg("Failed to read document for snapshot")
		return
	}
	pageURL, _ := session.URL(ctx)

	converted, err := md.NewConverter(pageURL, true, nil).ConvertString(page)
	if err != nil {
		w.logger.Warn().Err(err).Str("capture", base).Msg("Failed to convert document to markdown")
		return
	}
	content := fmt.Sprintf("<!-- %s -->\n\n%s\n", pageURL, converted)
	if path, err := w.save(SnapshotsDir, base+".md", []byte(content)); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to write snapshot")
	} else {
		w.logger.Debug().Str("path", path).Msg("Failure snapshot saved")
	}
}

func (w *Writer) save(subdir, name string, data []byte) (string, error) {
	dir := filepath.Join(w.dir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, data, 0644)
}

func fileName(parts ...string) string {
	name := strings.Join(parts, "_")
	return strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Markdown summarizes the run, failures last
func Markdown(rep *scenario.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# vizcheck run %s\n\n", rep.RunID)
	fmt.Fprintf(&b, "Started %s, took %s. **%d passed**, **%d failed**.\n\n",
		rep.Started.Format(time.RFC3339), rep.Duration.Round(time.Millisecond), rep.Passed, rep.Failed)

	b.WriteString("| Scenario | Case | Result | Duration |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, res := range rep.Results {
		if res.Err != nil || len(res.Cases) == 0 {
			fmt.Fprintf(&b, "| %s | setup | %s | %s |\n", res.Scenario, result(res.Err == nil), res.Duration.Round(time.Millisecond))
		}
		for _, c := range res.Cases {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", res.Scenario, c.Name, result(c.Passed), c.Duration.Round(time.Millisecond))
		}
	}

	if rep.Failed == 0 {
		return b.String()
	}

	b.WriteString("\n## Failures\n")
	for _, res := range rep.Results {
		if res.Passed {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", res.Scenario)
		if res.Error != "" {
			fmt.Fprintf(&b, "\nsetup:\n\n```\n%s\n```\n", res.Error)
		}
		for _, c := range res.Cases {
			if c.Passed {
				continue
			}
			fmt.Fprintf(&b, "\n%s:\n\n```\n%s\n```\n", c.Name, c.Error)
		}
	}
	return b.String()
}

func result(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// HTML renders the Markdown summary as a standalone page
func HTML(markdown string) ([]byte, error) {
	renderer := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var body bytes.Buffer
	if err := renderer.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>vizcheck report</title>
<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}pre{background:#f5f5f5;padding:8px}</style>
</head><body>
`)
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}
