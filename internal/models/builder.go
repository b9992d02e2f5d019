package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks that the state can be rendered as a chart
func (s VisState) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid visualization: %w", err)
	}
	if _, _, err := s.TimeRange.Bounds(); err != nil {
		return err
	}

	metrics, segments := 0, 0
	for _, a := range s.Aggs {
		if !a.Enabled {
			continue
		}
		if a.Type == "" {
			return fmt.Errorf("aggregation %d (%s) has no aggregation selected", a.ID, a.Schema.Label())
		}
		switch a.Schema {
		case SchemaMetric:
			if !a.Type.IsMetric() {
				return fmt.Errorf("aggregation %d: %s cannot be used as a metric", a.ID, a.Type.Label())
			}
			if a.Field != "" {
				return fmt.Errorf("aggregation %d: %s does not take a field", a.ID, a.Type.Label())
			}
			metrics++
		case SchemaSegment, SchemaGroup:
			if a.Type.IsMetric() {
				return fmt.Errorf("aggregation %d: %s cannot be used as a bucket", a.ID, a.Type.Label())
			}
			if a.Schema == SchemaSegment {
				segments++
			}
			if err := checkField(a); err != nil {
				return err
			}
		}
	}
	if metrics != 1 {
		return fmt.Errorf("visualization needs exactly one enabled metric, got %d", metrics)
	}
	if segments > 1 {
		return fmt.Errorf("visualization can have at most one X-Axis bucket, got %d", segments)
	}
	return nil
}

func checkField(a Agg) error {
	if a.Field == "" {
		return fmt.Errorf("aggregation %d: %s requires a field", a.ID, a.Type.Label())
	}
	kind, ok := KnownFields[a.Field]
	if !ok {
		return fmt.Errorf("aggregation %d: unknown field %q", a.ID, a.Field)
	}
	switch {
	case a.Type == AggDateHistogram && kind != FieldDate:
		return fmt.Errorf("aggregation %d: Date Histogram needs a date field, %q is %s", a.ID, a.Field, kind)
	case a.Type == AggTerms && kind != FieldKeyword:
		return fmt.Errorf("aggregation %d: Terms needs a keyword field, %q is %s", a.ID, a.Field, kind)
	}
	return nil
}

// Builder assembles a VisState and validates it once, at Build time.
// The first error encountered is kept and returned by Build.
type Builder struct {
	state VisState
	err   error
}

// NewBuilder starts from a histogram with the default Count metric
func NewBuilder() *Builder {
	return &Builder{state: NewVisState()}
}

// Title sets the saved title
func (b *Builder) Title(title string) *Builder {
	b.state.Title = title
	return b
}

// TimeRange sets the absolute time range
func (b *Builder) TimeRange(from, to string) *Builder {
	b.state.TimeRange = TimeRange{From: from, To: to}
	return b
}

// Metric switches the Y-Axis aggregation
func (b *Builder) Metric(agg AggType) *Builder {
	if b.err != nil {
		return b
	}
	if !agg.IsMetric() {
		b.err = fmt.Errorf("%s is not a metric aggregation", agg.Label())
		return b
	}
	b.state.Aggs[0].Type = agg
	return b
}

// Bucket appends a bucket aggregation
func (b *Builder) Bucket(schema SchemaType, agg AggType, field string) *Builder {
	if b.err != nil {
		return b
	}
	if schema == SchemaMetric {
		b.err = fmt.Errorf("use Metric to configure the Y-Axis")
		return b
	}
	a := b.state.AddAgg(schema)
	a.Type = agg
	a.Field = field
	return b
}

// Disable turns off the aggregation with the given ID
func (b *Builder) Disable(id int) *Builder {
	if b.err != nil {
		return b
	}
	a, ok := b.state.Agg(id)
	if !ok {
		b.err = fmt.Errorf("no aggregation with id %d", id)
		return b
	}
	a.Enabled = false
	return b
}

// Build returns a validated copy of the state
func (b *Builder) Build() (VisState, error) {
	if b.err != nil {
		return VisState{}, b.err
	}
	s := b.state.Clone()
	if err := s.Validate(); err != nil {
		return VisState{}, err
	}
	return s, nil
}
