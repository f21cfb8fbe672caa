package pipeline

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/roach88/tally/internal/record"
)

// Predicate filters enriched records non-destructively. A nil Predicate
// matches everything.
type Predicate func(record.EnrichedRecord) bool

// DateRange matches records sent inside [from, to]. A zero bound leaves
// that side open.
func DateRange(from, to time.Time) Predicate {
	return func(r record.EnrichedRecord) bool {
		if !from.IsZero() && r.Timestamp.Before(from) {
			return false
		}
		if !to.IsZero() && r.Timestamp.After(to) {
			return false
		}
		return true
	}
}

// OrgID matches records belonging to one organization.
func OrgID(id int) Predicate {
	return func(r record.EnrichedRecord) bool {
		return r.OrgID == id
	}
}

// Sender matches records ingested from one source.
func Sender(name string) Predicate {
	return func(r record.EnrichedRecord) bool {
		return r.Sender == name
	}
}

// And combines predicates; all must match. Nil elements are skipped.
func And(preds ...Predicate) Predicate {
	return func(r record.EnrichedRecord) bool {
		for _, p := range preds {
			if p != nil && !p(r) {
				return false
			}
		}
		return true
	}
}

// Metrics is the flat metrics object consumed by presentation widgets.
// Field names are a stable contract.
type Metrics struct {
	TotalRecords int     `json:"total_records"`
	TotalViews   int     `json:"total_views"`
	TotalClicks  int     `json:"total_clicks"`
	OpenRate     float64 `json:"open_rate"`  // % of records with at least one view
	ClickRate    float64 `json:"click_rate"` // clicks per view, as a percentage
	MeanViews    float64 `json:"mean_views"`
	MedianViews  float64 `json:"median_views"`
	DistinctOrgs int     `json:"distinct_orgs"`
	EngagedOrgs  int     `json:"engaged_orgs"` // orgs whose views exceed twice their sends
}

// Aggregate computes summary metrics over the filtered record view.
//
// The filter is applied to a derived view; the base record set is never
// mutated, so repeated aggregation with different filters is
// side-effect-free. All metrics are pure functions of the filtered set and
// of nothing else - no state survives between calls. Rates with a zero
// denominator yield 0 rather than failing, so aggregating an empty view
// is always defined.
func Aggregate(records []record.EnrichedRecord, filter Predicate) Metrics {
	var view []record.EnrichedRecord
	for _, r := range records {
		if filter == nil || filter(r) {
			view = append(view, r)
		}
	}

	m := Metrics{TotalRecords: len(view)}

	opened := 0
	orgSends := make(map[int]int)
	orgViews := make(map[int]int)
	views := make(stats.Float64Data, 0, len(view))

	for _, r := range view {
		m.TotalViews += r.Views
		m.TotalClicks += r.Clicks
		if r.Views > 0 {
			opened++
		}
		orgSends[r.OrgID]++
		orgViews[r.OrgID] += r.Views
		views = append(views, float64(r.Views))
	}

	m.OpenRate = pct(opened, m.TotalRecords)
	m.ClickRate = pct(m.TotalClicks, m.TotalViews)
	m.DistinctOrgs = len(orgSends)

	for org, sends := range orgSends {
		if orgViews[org] > 2*sends {
			m.EngagedOrgs++
		}
	}

	if len(views) > 0 {
		// stats errors only on empty input, which is guarded above.
		m.MeanViews, _ = stats.Mean(views)
		m.MedianViews, _ = stats.Median(views)
	}

	return m
}

// pct is the guarded rate computation: zero denominator yields 0.
func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
