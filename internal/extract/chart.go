// Package extract reads chart data back out of a rendered visualization page.
// Values are derived from the drawn geometry, not from data attributes, so a
// chart that is still animating yields wrong numbers until it settles.
package extract

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/vizcheck/internal/models"
)

// Selectors shared with the fixture app's page contract
const (
	SelectorChart       = "[data-test-subj=visualizationLoader]"
	SelectorPlotArea    = "svg rect.plot-area"
	SelectorYTicks      = "svg g.y-axis text.tick"
	SelectorBars        = "svg g.series rect.bar"
	SelectorLegend      = "[data-test-subj=visLegend] .legend-value-title"
	SelectorTableRows   = "[data-test-subj=inspectorTable] tbody tr"
	SelectorRenderError = "[data-test-subj=visualizationError]"
)

// Render states reported by data-render-state
const (
	RenderPending = "pending"
	RenderDone    = "done"
	RenderError   = "error"
)

var (
	// ErrNoChart means the document has no visualization
	ErrNoChart = errors.New("no visualization on page")

	// ErrNotRendered means the chart is still drawing
	ErrNotRendered = errors.New("visualization still rendering")

	// ErrRenderFailed means the chart reported a render error
	ErrRenderFailed = errors.New("visualization failed to render")
)

// Parse loads serialized HTML
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

// RenderState returns the chart's data-render-state, or ErrNoChart
func RenderState(doc *goquery.Document) (string, error) {
	chart := doc.Find(SelectorChart).First()
	if chart.Length() == 0 {
		return "", ErrNoChart
	}
	return chart.AttrOr("data-render-state", RenderPending), nil
}

// Ready returns nil once the chart finished rendering successfully
func Ready(doc *goquery.Document) error {
	state, err := RenderState(doc)
	if err != nil {
		return err
	}
	switch state {
	case RenderDone:
		return nil
	case RenderError:
		msg := strings.TrimSpace(doc.Find(SelectorRenderError).First().Text())
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrRenderFailed, msg)
	}
	return ErrNotRendered
}

// Series converts every drawn bar back into its value, in document order.
// value = height / plotHeight * (maxTick - minTick), negated for bars drawn
// below the zero line.
func Series(doc *goquery.Document) ([]float64, error) {
	if doc.Find(SelectorChart).Length() == 0 {
		return nil, ErrNoChart
	}

	plotHeight, err := floatAttr(doc.Find(SelectorPlotArea).First(), "height")
	if err != nil {
		return nil, fmt.Errorf("plot area: %w", err)
	}
	if plotHeight <= 0 {
		return nil, fmt.Errorf("plot area has no height")
	}

	minTick, maxTick, err := tickRange(doc)
	if err != nil {
		return nil, err
	}
	scale := (maxTick - minTick) / plotHeight

	values := []float64{}
	var barErr error
	doc.Find(SelectorBars).EachWithBreak(func(i int, bar *goquery.Selection) bool {
		h, err := floatAttr(bar, "height")
		if err != nil {
			barErr = fmt.Errorf("bar %d: %w", i, err)
			return false
		}
		v := math.Round(h * scale)
		if bar.HasClass("negative") {
			v = -v
		}
		values = append(values, v)
		return true
	})
	if barErr != nil {
		return nil, barErr
	}
	return values, nil
}

// Legend returns the legend labels in display order
func Legend(doc *goquery.Document) []string {
	entries := []string{}
	doc.Find(SelectorLegend).Each(func(_ int, s *goquery.Selection) {
		entries = append(entries, strings.TrimSpace(s.Text()))
	})
	return entries
}

// Table returns the visible inspector rows as (first cell, last cell) pairs
func Table(doc *goquery.Document) ([]models.TableRow, error) {
	if doc.Find("[data-test-subj=inspectorTable]").Length() == 0 {
		return nil, fmt.Errorf("inspector table not open")
	}
	rows := []models.TableRow{}
	doc.Find(SelectorTableRows).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		rows = append(rows, models.TableRow{
			Label: strings.TrimSpace(cells.First().Text()),
			Value: strings.TrimSpace(cells.Last().Text()),
		})
	})
	return rows, nil
}

func tickRange(doc *goquery.Document) (float64, float64, error) {
	ticks := doc.Find(SelectorYTicks)
	if ticks.Length() < 2 {
		return 0, 0, fmt.Errorf("y axis needs at least two ticks, found %d", ticks.Length())
	}

	minTick, maxTick := math.Inf(1), math.Inf(-1)
	var parseErr error
	ticks.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		v, err := ParseNumber(t.Text())
		if err != nil {
			parseErr = fmt.Errorf("y axis tick: %w", err)
			return false
		}
		minTick = math.Min(minTick, v)
		maxTick = math.Max(maxTick, v)
		return true
	})
	if parseErr != nil {
		return 0, 0, parseErr
	}
	if maxTick <= minTick {
		return 0, 0, fmt.Errorf("y axis range is empty")
	}
	return minTick, maxTick, nil
}

// ParseNumber parses a display number with thousands separators, e.g. "1,437"
func ParseNumber(s string) (float64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	clean = strings.ReplaceAll(clean, "−", "-")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func floatAttr(s *goquery.Selection, name string) (float64, error) {
	raw, ok := s.Attr(name)
	if !ok {
		return 0, fmt.Errorf("missing %s attribute", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
