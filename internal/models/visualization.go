package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the absolute time format accepted by the time picker
const TimeLayout = "2006-01-02 15:04:05.000"

// VisTypeHistogram is the vertical bar chart visualization type
const VisTypeHistogram = "histogram"

// SchemaType identifies the editor slot an aggregation occupies
type SchemaType string

const (
	SchemaMetric  SchemaType = "metric"  // Y-Axis
	SchemaSegment SchemaType = "segment" // X-Axis
	SchemaGroup   SchemaType = "group"   // Split Series
)

var schemaLabels = map[SchemaType]string{
	SchemaMetric:  "Y-Axis",
	SchemaSegment: "X-Axis",
	SchemaGroup:   "Split Series",
}

// Label returns the editor label shown for the schema
func (s SchemaType) Label() string {
	if l, ok := schemaLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseSchema accepts either the editor label ("X-Axis") or the raw value ("segment")
func ParseSchema(label string) (SchemaType, error) {
	label = strings.TrimSpace(label)
	for s, l := range schemaLabels {
		if strings.EqualFold(label, l) || strings.EqualFold(label, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown bucket type %q", label)
}

// AggType is the closed set of supported aggregations
type AggType string

const (
	AggCount         AggType = "count"
	AggDerivative    AggType = "derivative"
	AggDateHistogram AggType = "date_histogram"
	AggTerms         AggType = "terms"
)

var aggLabels = map[AggType]string{
	AggCount:         "Count",
	AggDerivative:    "Derivative",
	AggDateHistogram: "Date Histogram",
	AggTerms:         "Terms",
}

// AggTypes lists aggregations in the order the editor offers them
var AggTypes = []AggType{AggCount, AggDerivative, AggDateHistogram, AggTerms}

// Label returns the editor label for the aggregation
func (a AggType) Label() string {
	if l, ok := aggLabels[a]; ok {
		return l
	}
	return string(a)
}

// IsMetric reports whether the aggregation produces the Y value
func (a AggType) IsMetric() bool {
	return a == AggCount || a == AggDerivative
}

// ParseAggType accepts either the editor label ("Date Histogram") or the raw value
func ParseAggType(label string) (AggType, error) {
	label = strings.TrimSpace(label)
	for a, l := range aggLabels {
		if strings.EqualFold(label, l) || strings.EqualFold(label, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation %q", label)
}

// FieldKind describes how a field may be aggregated
type FieldKind string

const (
	FieldDate    FieldKind = "date"
	FieldKeyword FieldKind = "keyword"
)

// KnownFields are the index pattern fields offered in the field selector
var KnownFields = map[string]FieldKind{
	"@timestamp":   FieldDate,
	"response.raw": FieldKeyword,
	"machine.os":   FieldKeyword,
}

// FieldsFor returns the fields an aggregation can target, sorted for display
func FieldsFor(agg AggType) []string {
	switch agg {
	case AggDateHistogram:
		return []string{"@timestamp"}
	case AggTerms:
		return []string{"machine.os", "response.raw"}
	}
	return nil
}

// Agg is one aggregation row in the editor sidebar
type Agg struct {
	ID      int        `json:"id"`
	Type    AggType    `json:"type,omitempty" validate:"omitempty,oneof=count derivative date_histogram terms"`
	Schema  SchemaType `json:"schema" validate:"required,oneof=metric segment group"`
	Field   string     `json:"field,omitempty"`
	Enabled bool       `json:"enabled"`
	Open    bool       `json:"open"`
}

// TimeRange is an absolute time picker range
type TimeRange struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// Bounds parses the range, rejecting inverted ranges
func (r TimeRange) Bounds() (time.Time, time.Time, error) {
	from, err := time.Parse(TimeLayout, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", r.From, err)
	}
	to, err := time.Parse(TimeLayout, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", r.To, err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("time range end %s is before start %s", r.To, r.From)
	}
	return from, to, nil
}

// VisState is the full editor state of a visualization
type VisState struct {
	Type      string    `json:"type" validate:"required,eq=histogram"`
	Title     string    `json:"title,omitempty"`
	TimeRange TimeRange `json:"time_range"`
	Aggs      []Agg     `json:"aggs" validate:"min=1,dive"`
}

// NewVisState returns a fresh editor state with the default Count metric
func NewVisState() VisState {
	return VisState{
		Type: VisTypeHistogram,
		Aggs: []Agg{{ID: 1, Type: AggCount, Schema: SchemaMetric, Enabled: true, Open: true}},
	}
}

// Clone returns a deep copy so callers can mutate aggs freely
func (s VisState) Clone() VisState {
	c := s
	c.Aggs = append([]Agg(nil), s.Aggs...)
	return c
}

// Agg returns the aggregation with the given ID
func (s *VisState) Agg(id int) (*Agg, bool) {
	for i := range s.Aggs {
		if s.Aggs[i].ID == id {
			return &s.Aggs[i], true
		}
	}
	return nil, false
}

// AddAgg appends an aggregation with the next free ID
func (s *VisState) AddAgg(schema SchemaType) *Agg {
	next := 1
	for _, a := range s.Aggs {
		if a.ID >= next {
			next = a.ID + 1
		}
	}
	s.Aggs = append(s.Aggs, Agg{ID: next, Schema: schema, Enabled: true, Open: true})
	return &s.Aggs[len(s.Aggs)-1]
}

// Metric returns the first enabled metric aggregation
func (s VisState) Metric() (Agg, bool) {
	for _, a := range s.Aggs {
		if a.Schema == SchemaMetric && a.Enabled {
			return a, true
		}
	}
	return Agg{}, false
}

// Segment returns the enabled X-Axis bucket, if any
func (s VisState) Segment() (Agg, bool) {
	for _, a := range s.Aggs {
		if a.Schema == SchemaSegment && a.Enabled {
			return a, true
		}
	}
	return Agg{}, false
}

// Groups returns the enabled Split Series buckets in editor order
func (s VisState) Groups() []Agg {
	var groups []Agg
	for _, a := range s.Aggs {
		if a.Schema == SchemaGroup && a.Enabled {
			groups = append(groups, a)
		}
	}
	return groups
}

// MetricLabel is the series label used when the chart has no split
func (s VisState) MetricLabel() string {
	m, ok := s.Metric()
	if !ok {
		return ""
	}
	if m.Type == AggDerivative {
		return "Derivative of Count"
	}
	return m.Type.Label()
}

// TableRow is one row of the inspector data table
type TableRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SavedVisualization is a persisted visualization
type SavedVisualization struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" badgerhold:"index"`
	State     VisState  `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
