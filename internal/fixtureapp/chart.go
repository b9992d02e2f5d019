package fixtureapp

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ternarybob/vizcheck/internal/models"
)

const seriesSeparator = " - "

// Series is one legend entry. NaN marks a bucket without a value.
type Series struct {
	Label  string
	Values []float64
}

// Chart is the computed data behind one rendered visualization
type Chart struct {
	XLabel  string
	YLabel  string
	Buckets []string
	Series  []Series
	Split   []string
}

// Compute evaluates a visualization state against the dataset
func Compute(ds *Dataset, state models.VisState) (*Chart, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	from, to, err := state.TimeRange.Bounds()
	if err != nil {
		return nil, err
	}

	chart := &Chart{YLabel: state.MetricLabel()}

	// Bucket counts inside the time range
	var counts []float64
	if seg, ok := state.Segment(); ok {
		chart.XLabel = fmt.Sprintf("%s per %s", seg.Field, ds.IntervalLabel())
		for i, t := range ds.times {
			if t.Before(from) || t.After(to) {
				continue
			}
			chart.Buckets = append(chart.Buckets, t.Format(BucketLayout))
			counts = append(counts, float64(ds.Histogram[i].Count))
		}
	} else {
		chart.XLabel = "all"
		total := 0.0
		for i, t := range ds.times {
			if !t.Before(from) && !t.After(to) {
				total += float64(ds.Histogram[i].Count)
			}
		}
		chart.Buckets = []string{"all"}
		counts = []float64{total}
	}

	var fields []string
	for _, g := range state.Groups() {
		fields = append(fields, g.Field)
	}
	chart.Split = fields

	order, err := ds.seriesOrder(fields)
	if err != nil {
		return nil, err
	}

	if len(order) == 0 {
		chart.Series = []Series{{Label: chart.YLabel, Values: counts}}
	} else {
		weights := make([]float64, len(order))
		for j, keys := range order {
			weights[j] = 1.0
			for i, key := range keys {
				term, ok := ds.term(fields[i], key)
				if !ok {
					return nil, fmt.Errorf("dataset has no term %q for %s", key, fields[i])
				}
				weights[j] *= term.Share
			}
			chart.Series = append(chart.Series, Series{
				Label:  strings.Join(keys, seriesSeparator),
				Values: make([]float64, len(counts)),
			})
		}
		for b, c := range counts {
			parts, err := apportion(c, weights)
			if err != nil {
				return nil, fmt.Errorf("split %s: %w", strings.Join(fields, ", "), err)
			}
			for j, v := range parts {
				chart.Series[j].Values[b] = v
			}
		}
	}

	if m, _ := state.Metric(); m.Type == models.AggDerivative {
		for i := range chart.Series {
			chart.Series[i].Values = derivative(chart.Series[i].Values)
		}
	}
	return chart, nil
}

// apportion splits an integer count across weighted series with the largest
// remainder method. The parts always sum to count; ties go to the earlier series.
func apportion(count float64, weights []float64) ([]float64, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	parts := make([]float64, len(weights))
	if count == 0 {
		return parts, nil
	}
	if total <= 0 {
		return nil, fmt.Errorf("series shares sum to zero")
	}

	remainders := make([]float64, len(weights))
	assigned := 0.0
	for i, w := range weights {
		exact := count * w / total
		parts[i] = math.Floor(exact)
		remainders[i] = exact - parts[i]
		assigned += parts[i]
	}

	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return remainders[idx[a]] > remainders[idx[b]] })
	for left := int(math.Round(count - assigned)); left > 0; left-- {
		parts[idx[0]]++
		idx = append(idx[1:], idx[0])
	}
	return parts, nil
}

// derivative replaces each value with the difference to the previous bucket.
// The first bucket has no predecessor and stays empty.
func derivative(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Legend returns the series labels in display order
func (c *Chart) Legend() []string {
	labels := make([]string, len(c.Series))
	for i, s := range c.Series {
		labels[i] = s.Label
	}
	return labels
}

// Rows flattens the chart into inspector rows: bucket, optional series, value
func (c *Chart) Rows() [][]string {
	var rows [][]string
	for b, bucket := range c.Buckets {
		for _, s := range c.Series {
			row := []string{bucket}
			if len(c.Split) > 0 {
				row = append(row, strings.Split(s.Label, seriesSeparator)...)
			}
			row = append(row, formatValue(s.Values[b]))
			rows = append(rows, row)
		}
	}
	return rows
}

// Columns are the inspector table headers matching Rows
func (c *Chart) Columns() []string {
	cols := []string{c.XLabel}
	for _, f := range c.Split {
		cols = append(cols, "Top 5 "+f)
	}
	return append(cols, c.YLabel)
}
