package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tally/internal/pipeline"
	"github.com/roach88/tally/internal/record"
)

// marshalAttrs serializes a passthrough attribute map to canonical JSON.
// Nil marshals as an empty object so the column is never NULL and
// byte-comparison across rows stays meaningful.
func marshalAttrs(attrs record.Attrs) (string, error) {
	m := make(map[string]any, len(attrs))
	for k, v := range attrs {
		m[k] = v
	}
	b, err := record.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal attrs: %w", err)
	}
	return string(b), nil
}

// unmarshalAttrs restores an attribute map. An empty object yields nil so a
// round-tripped record compares equal to the original.
func unmarshalAttrs(s string) (record.Attrs, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal attrs: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return record.Attrs(m), nil
}

// marshalMetrics serializes batch metrics to canonical JSON for the
// batches.metrics column.
func marshalMetrics(m pipeline.Metrics) (string, error) {
	b, err := record.MarshalCanonical(map[string]any{
		"total_records": m.TotalRecords,
		"total_views":   m.TotalViews,
		"total_clicks":  m.TotalClicks,
		"open_rate":     m.OpenRate,
		"click_rate":    m.ClickRate,
		"mean_views":    m.MeanViews,
		"median_views":  m.MedianViews,
		"distinct_orgs": m.DistinctOrgs,
		"engaged_orgs":  m.EngagedOrgs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	return string(b), nil
}

// unmarshalMetrics restores batch metrics. The struct's json tags match the
// canonical keys written by marshalMetrics.
func unmarshalMetrics(s string) (pipeline.Metrics, error) {
	var m pipeline.Metrics
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return pipeline.Metrics{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return m, nil
}

// dbTime renders a timestamp as RFC 3339 UTC for storage. The zero time
// maps to NULL.
func dbTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// scanTime parses a stored RFC 3339 timestamp. NULL maps to the zero time.
func scanTime(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", *s, err)
	}
	return t, nil
}
