package fixtureapp

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/vizcheck/internal/models"
)

// BucketLayout is the display format of date histogram bucket keys
const BucketLayout = "2006-01-02 15:04"

//go:embed datasets.yaml
var embeddedDataset []byte

// Bucket is one date histogram bucket
type Bucket struct {
	Time  string `yaml:"time"`
	Count int    `yaml:"count"`
}

// Term is one value of a keyword field with its share of every bucket
type Term struct {
	Key   string  `yaml:"key"`
	Share float64 `yaml:"share"`
}

// Combination fixes the series order of a multi level split
type Combination struct {
	Fields []string `yaml:"fields"`
	Series []string `yaml:"series"`
}

// Dataset is the canned data behind every chart
type Dataset struct {
	IndexPattern string            `yaml:"index_pattern"`
	TimeField    string            `yaml:"time_field"`
	Interval     string            `yaml:"interval"`
	Histogram    []Bucket          `yaml:"histogram"`
	Terms        map[string][]Term `yaml:"terms"`
	Combinations []Combination     `yaml:"combinations"`

	interval time.Duration
	times    []time.Time
}

// DefaultDataset returns the embedded dataset
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(embeddedDataset)
}

// LoadDataset reads a dataset file, or the embedded one when path is empty
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return DefaultDataset()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes and checks a YAML dataset
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if err := ds.prepare(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (d *Dataset) prepare() error {
	if d.IndexPattern == "" {
		return fmt.Errorf("dataset: index_pattern is required")
	}
	if d.TimeField == "" {
		d.TimeField = "@timestamp"
	}

	interval, err := time.ParseDuration(d.Interval)
	if err != nil || interval <= 0 {
		return fmt.Errorf("dataset: invalid interval %q", d.Interval)
	}
	d.interval = interval

	d.times = make([]time.Time, len(d.Histogram))
	for i, b := range d.Histogram {
		t, err := time.Parse(BucketLayout, b.Time)
		if err != nil {
			return fmt.Errorf("dataset: bucket %d: invalid time %q", i, b.Time)
		}
		if i > 0 && !t.After(d.times[i-1]) {
			return fmt.Errorf("dataset: bucket %d is not after bucket %d", i, i-1)
		}
		if b.Count < 0 {
			return fmt.Errorf("dataset: bucket %d has negative count", i)
		}
		d.times[i] = t
	}

	for field, terms := range d.Terms {
		if _, ok := models.KnownFields[field]; !ok {
			return fmt.Errorf("dataset: terms for unknown field %q", field)
		}
		for _, t := range terms {
			if t.Key == "" || t.Share < 0 || t.Share > 1 {
				return fmt.Errorf("dataset: invalid term %+v for %s", t, field)
			}
		}
	}

	for _, c := range d.Combinations {
		if len(c.Fields) != 2 {
			return fmt.Errorf("dataset: combinations need exactly two fields, got %v", c.Fields)
		}
		for _, label := range c.Series {
			if _, _, ok := strings.Cut(label, seriesSeparator); !ok {
				return fmt.Errorf("dataset: combination series %q is not \"outer%sinner\"", label, seriesSeparator)
			}
		}
	}
	return nil
}

// IntervalLabel describes the bucket interval for table headers, e.g. "3 hours"
func (d *Dataset) IntervalLabel() string {
	if h := d.interval.Hours(); h >= 1 && h == float64(int(h)) {
		if h == 1 {
			return "hour"
		}
		return fmt.Sprintf("%d hours", int(h))
	}
	return d.interval.String()
}

func (d *Dataset) term(field, key string) (Term, bool) {
	for _, t := range d.Terms[field] {
		if t.Key == key {
			return t, true
		}
	}
	return Term{}, false
}

// seriesOrder returns the legend order for the given split fields
func (d *Dataset) seriesOrder(fields []string) ([][]string, error) {
	switch len(fields) {
	case 0:
		return nil, nil
	case 1:
		terms, ok := d.Terms[fields[0]]
		if !ok {
			return nil, fmt.Errorf("no terms for field %s", fields[0])
		}
		keys := make([][]string, len(terms))
		for i, t := range terms {
			keys[i] = []string{t.Key}
		}
		return keys, nil
	case 2:
		for _, c := range d.Combinations {
			if c.Fields[0] == fields[0] && c.Fields[1] == fields[1] {
				keys := make([][]string, len(c.Series))
				for i, label := range c.Series {
					outer, inner, _ := strings.Cut(label, seriesSeparator)
					keys[i] = []string{outer, inner}
				}
				return keys, nil
			}
		}
		// Fall back to outer x inner in term order
		var keys [][]string
		for _, outer := range d.Terms[fields[0]] {
			for _, inner := range d.Terms[fields[1]] {
				keys = append(keys, []string{outer.Key, inner.Key})
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("no terms for fields %v", fields)
		}
		return keys, nil
	}
	return nil, fmt.Errorf("at most two split series are supported, got %d", len(fields))
}
