// Package verticalbar is the vertical bar chart suite. Each scenario group is
// produced by its own builder so no group shares mutable setup with another.
package verticalbar

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/vizcheck/internal/assertion"
	"github.com/ternarybob/vizcheck/internal/interfaces"
	"github.com/ternarybob/vizcheck/internal/models"
	"github.com/ternarybob/vizcheck/internal/scenario"
)

// Page is the editor surface the suite drives
type Page interface {
	interfaces.Navigator
	interfaces.Extractor
	interfaces.Persister

	ClickVerticalBarChart(ctx context.Context) error
	ClickNewSearch(ctx context.Context) error
	ClickBucket(ctx context.Context, schema models.SchemaType) error
	ClickAddBucket(ctx context.Context) error
	SelectAggregation(ctx context.Context, agg models.AggType) error
	SelectField(ctx context.Context, field string) error
	ToggleOpenEditor(ctx context.Context, id int, open bool) error
	ToggleDisabledAgg(ctx context.Context, id int) error
	ClickGo(ctx context.Context) error
	IsInspectorEnabled(ctx context.Context) (bool, error)
	OpenInspector(ctx context.Context) error
	BreadcrumbTitle(ctx context.Context) (string, error)
}

// Config is the starting configuration of every scenario. It is passed by value.
type Config struct {
	From      string
	To        string
	SaveTitle string
}

// DefaultConfig returns the range the expected fixtures were recorded over
func DefaultConfig() Config {
	return Config{
		From:      "2015-09-19 06:31:44.000",
		To:        "2015-09-23 18:31:44.000",
		SaveTitle: "Visualization VerticalBarChart",
	}
}

// Validate builds the visualization each group configures and returns the
// first one that cannot render. Agg IDs match the ones the steps address.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SaveTitle) == "" {
		return fmt.Errorf("save title is required")
	}
	groups := []struct {
		name    string
		builder *models.Builder
	}{
		{"bar chart", barChartState(c)},
		{"split series", barChartState(c).
			Bucket(models.SchemaGroup, models.AggTerms, "response.raw")},
		{"multiple splits", barChartState(c).
			Bucket(models.SchemaGroup, models.AggTerms, "response.raw").
			Bucket(models.SchemaGroup, models.AggTerms, "machine.os").
			Disable(3)},
		{"derivative", barChartState(c).Metric(models.AggDerivative)},
	}
	for _, g := range groups {
		if _, err := g.builder.Build(); err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
	}
	return nil
}

func barChartState(c Config) *models.Builder {
	return models.NewBuilder().
		Title(c.SaveTitle).
		TimeRange(c.From, c.To).
		Bucket(models.SchemaSegment, models.AggDateHistogram, "@timestamp")
}

// Scenarios returns every group of the suite, each with fresh setup steps.
// An invalid cfg is rejected before any step is built.
func Scenarios(page Page, cfg Config) ([]scenario.Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vertical bar suite: %w", err)
	}
	return []scenario.Scenario{
		BarChart(page, cfg),
		SplitSeries(page, cfg),
		MultipleSplits(page, cfg),
		Derivative(page, cfg),
	}, nil
}

// initBarChart builds a Count over a 3h date histogram on @timestamp
func initBarChart(page Page, cfg Config) []scenario.Step {
	return []scenario.Step{
		scenario.Configure("navigate to new visualization", func(ctx context.Context) error {
			return page.Navigate(ctx, "visualize/new")
		}),
		scenario.Configure("click vertical bar chart", page.ClickVerticalBarChart),
		scenario.Configure("click new search", page.ClickNewSearch),
		scenario.Configure("set absolute range", func(ctx context.Context) error {
			return page.SetRange(ctx, cfg.From, cfg.To)
		}),
		scenario.Configure("click bucket X-Axis", func(ctx context.Context) error {
			return page.ClickBucket(ctx, models.SchemaSegment)
		}),
		scenario.Configure("select aggregation Date Histogram", func(ctx context.Context) error {
			return page.SelectAggregation(ctx, models.AggDateHistogram)
		}),
		scenario.Configure("select field @timestamp", func(ctx context.Context) error {
			return page.SelectField(ctx, "@timestamp")
		}),
		render(page),
	}
}

func render(page Page) scenario.Step {
	return scenario.Render("click go", func(ctx context.Context) error {
		if err := page.ClickGo(ctx); err != nil {
			return err
		}
		return page.WaitUntilIdle(ctx)
	})
}

// addSplit adds a Split Series terms bucket on field
func addSplit(page Page, field string) []scenario.Step {
	return []scenario.Step{
		scenario.Configure("click add bucket", page.ClickAddBucket),
		scenario.Configure("click bucket Split Series", func(ctx context.Context) error {
			return page.ClickBucket(ctx, models.SchemaGroup)
		}),
		scenario.Configure("select aggregation Terms", func(ctx context.Context) error {
			return page.SelectAggregation(ctx, models.AggTerms)
		}),
		scenario.Configure("select field "+field, func(ctx context.Context) error {
			return page.SelectField(ctx, field)
		}),
	}
}

func closeEditor(page Page, id int) scenario.Step {
	return scenario.Configure(fmt.Sprintf("close editor %d", id), func(ctx context.Context) error {
		return page.ToggleOpenEditor(ctx, id, false)
	})
}

func seriesEquals(page Page, expected func() []float64) func(context.Context) error {
	return func(ctx context.Context) error {
		observed, err := page.ExtractSeries(ctx)
		if err != nil {
			return err
		}
		return assertion.Equal("series", observed, expected())
	}
}

func legendEquals(page Page, expected []string) func(context.Context) error {
	return func(ctx context.Context) error {
		observed, err := page.ExtractLegend(ctx)
		if err != nil {
			return err
		}
		return assertion.Equal("legend", observed, expected)
	}
}

// BarChart covers persistence, the inspector and the rendered values
func BarChart(page Page, cfg Config) scenario.Scenario {
	var (
		beforeSave []float64
		toast      string
	)

	return scenario.Scenario{
		Name:  "vertical bar chart",
		Setup: initBarChart(page, cfg),
		Cases: []scenario.Case{
			{
				Name: "should save and load",
				Steps: []scenario.Step{
					scenario.Configure("read series", func(ctx context.Context) error {
						var err error
						beforeSave, err = page.ExtractSeries(ctx)
						return err
					}),
					scenario.Configure("save visualization", func(ctx context.Context) error {
						var err error
						toast, err = page.Save(ctx, cfg.SaveTitle)
						return err
					}),
				},
				Check: scenario.Immediately("save confirmation and breadcrumb", func(ctx context.Context) error {
					if err := assertion.Contains("save confirmation", toast, cfg.SaveTitle); err != nil {
						return err
					}
					title, err := page.BreadcrumbTitle(ctx)
					if err != nil {
						return err
					}
					return assertion.Contains("page title", title, cfg.SaveTitle)
				}),
			},
			{
				Name: "should show the saved chart after loading",
				Steps: []scenario.Step{
					scenario.Render("load saved visualization", func(ctx context.Context) error {
						return page.Load(ctx, cfg.SaveTitle)
					}),
				},
				Check: scenario.Eventually("series", seriesEquals(page, func() []float64 { return beforeSave })),
			},
			{
				Name: "should have inspector enabled",
				Check: scenario.Immediately("inspector button", func(ctx context.Context) error {
					enabled, err := page.IsInspectorEnabled(ctx)
					if err != nil {
						return err
					}
					return assertion.True("inspector enabled", enabled)
				}),
			},
			{
				Name:  "should show correct chart",
				Check: scenario.Eventually("series", seriesEquals(page, func() []float64 { return ExpectedCounts })),
			},
			{
				Name:  "should show correct data",
				Steps: []scenario.Step{scenario.Configure("open inspector", page.OpenInspector)},
				Check: scenario.Immediately("inspector table", func(ctx context.Context) error {
					observed, err := page.ExtractTable(ctx)
					if err != nil {
						return err
					}
					return assertion.Equal("table", observed, ExpectedRows)
				}),
			},
		},
	}
}

// SplitSeries splits the count by response code
func SplitSeries(page Page, cfg Config) scenario.Scenario {
	setup := initBarChart(page, cfg)
	setup = append(setup, closeEditor(page, 2))
	setup = append(setup, addSplit(page, "response.raw")...)
	setup = append(setup, render(page))

	return scenario.Scenario{
		Name:  "vertical bar with split series",
		Setup: setup,
		Cases: []scenario.Case{{
			Name:  "should show correct series",
			Check: scenario.Eventually("legend", legendEquals(page, ResponseLegend)),
		}},
	}
}

// MultipleSplits splits by response code then by OS, and disables the first split
func MultipleSplits(page Page, cfg Config) scenario.Scenario {
	setup := initBarChart(page, cfg)
	setup = append(setup, closeEditor(page, 2))
	setup = append(setup, addSplit(page, "response.raw")...)
	setup = append(setup, closeEditor(page, 3))
	setup = append(setup, addSplit(page, "machine.os")...)
	setup = append(setup, render(page))

	return scenario.Scenario{
		Name:  "vertical bar with multiple splits",
		Setup: setup,
		Cases: []scenario.Case{
			{
				Name:  "should show correct series",
				Check: scenario.Eventually("legend", legendEquals(page, MultiSplitLegend)),
			},
			{
				Name: "should show correct series when disabling first agg",
				Steps: []scenario.Step{
					scenario.Configure("disable agg 3", func(ctx context.Context) error {
						return page.ToggleDisabledAgg(ctx, 3)
					}),
					render(page),
				},
				Check: scenario.Eventually("legend", legendEquals(page, OSLegend)),
			},
		},
	}
}

// Derivative switches the metric to a derivative of the count
func Derivative(page Page, cfg Config) scenario.Scenario {
	setup := initBarChart(page, cfg)
	setup = append(setup,
		closeEditor(page, 2),
		scenario.Configure("open editor 1", func(ctx context.Context) error {
			return page.ToggleOpenEditor(ctx, 1, true)
		}),
		scenario.Configure("select aggregation Derivative", func(ctx context.Context) error {
			return page.SelectAggregation(ctx, models.AggDerivative)
		}),
		render(page),
	)

	return scenario.Scenario{
		Name:  "vertical bar with derivative",
		Setup: setup,
		Cases: []scenario.Case{{
			Name:  "should show correct series",
			Check: scenario.Eventually("legend", legendEquals(page, DerivativeLegend)),
		}},
	}
}
