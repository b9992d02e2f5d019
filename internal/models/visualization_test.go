package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFrom = "2015-09-19 06:31:44.000"
	testTo   = "2015-09-23 18:31:44.000"
)

func TestParseSchema(t *testing.T) {
	tests := []struct {
		input   string
		want    SchemaType
		wantErr bool
	}{
		{"X-Axis", SchemaSegment, false},
		{"Split Series", SchemaGroup, false},
		{"y-axis", SchemaMetric, false},
		{" group ", SchemaGroup, false},
		{"Split Chart", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSchema(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAggType(t *testing.T) {
	got, err := ParseAggType("Date Histogram")
	require.NoError(t, err)
	assert.Equal(t, AggDateHistogram, got)

	got, err = ParseAggType("derivative")
	require.NoError(t, err)
	assert.Equal(t, AggDerivative, got)
	assert.True(t, got.IsMetric())

	_, err = ParseAggType("Moving Average")
	assert.Error(t, err)
}

func TestBuilder_DateHistogram(t *testing.T) {
	state, err := NewBuilder().
		TimeRange(testFrom, testTo).
		Bucket(SchemaSegment, AggDateHistogram, "@timestamp").
		Build()
	require.NoError(t, err)

	require.Len(t, state.Aggs, 2)
	assert.Equal(t, 1, state.Aggs[0].ID)
	assert.Equal(t, AggCount, state.Aggs[0].Type)
	assert.Equal(t, 2, state.Aggs[1].ID)
	assert.Equal(t, SchemaSegment, state.Aggs[1].Schema)
	assert.Equal(t, "Count", state.MetricLabel())
}

func TestBuilder_RejectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{
			name: "terms on date field",
			builder: NewBuilder().TimeRange(testFrom, testTo).
				Bucket(SchemaSegment, AggTerms, "@timestamp"),
		},
		{
			name: "date histogram on keyword",
			builder: NewBuilder().TimeRange(testFrom, testTo).
				Bucket(SchemaSegment, AggDateHistogram, "machine.os"),
		},
		{
			name: "unknown field",
			builder: NewBuilder().TimeRange(testFrom, testTo).
				Bucket(SchemaGroup, AggTerms, "geo.src"),
		},
		{
			name: "two x axes",
			builder: NewBuilder().TimeRange(testFrom, testTo).
				Bucket(SchemaSegment, AggDateHistogram, "@timestamp").
				Bucket(SchemaSegment, AggTerms, "machine.os"),
		},
		{
			name:    "bucket agg as metric",
			builder: NewBuilder().TimeRange(testFrom, testTo).Metric(AggTerms),
		},
		{
			name:    "inverted range",
			builder: NewBuilder().TimeRange(testTo, testFrom),
		},
		{
			name:    "missing range",
			builder: NewBuilder(),
		},
		{
			name:    "disable unknown agg",
			builder: NewBuilder().TimeRange(testFrom, testTo).Disable(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.Error(t, err)
		})
	}
}

func TestVisState_GroupsSkipDisabled(t *testing.T) {
	state, err := NewBuilder().
		TimeRange(testFrom, testTo).
		Bucket(SchemaSegment, AggDateHistogram, "@timestamp").
		Bucket(SchemaGroup, AggTerms, "response.raw").
		Bucket(SchemaGroup, AggTerms, "machine.os").
		Disable(3).
		Build()
	require.NoError(t, err)

	groups := state.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "machine.os", groups[0].Field)
}

func TestVisState_CloneIsIndependent(t *testing.T) {
	state := NewVisState()
	clone := state.Clone()
	clone.Aggs[0].Type = AggDerivative

	assert.Equal(t, AggCount, state.Aggs[0].Type)
	assert.Equal(t, "Derivative of Count", clone.MetricLabel())
}
