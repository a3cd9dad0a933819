package insight

import (
	"sort"
	"strings"
	"time"

	"github.com/promptlens/promptlens/plugin/ai/planner"
	"github.com/promptlens/promptlens/store"
)

// OwnerUnknown is the bar-chart group for records without an owner.
const OwnerUnknown = "unknown"

// SegmentKeySeparator joins the parts of a compound segment key.
const SegmentKeySeparator = "|"

// SegmentKey builds the key for a chart segment: (term) for pie,
// (day, term) for line, (group, term) for bar.
func SegmentKey(parts ...string) string {
	return strings.Join(parts, SegmentKeySeparator)
}

// Aggregate converts the final MatchMap into chart data and builds the
// segment index in the same walk, so the two cannot drift apart.
func Aggregate(kind planner.ChartKind, matches *MatchMap, candidates []*store.Record) (*ChartData, SegmentIndex) {
	segmentIndex := make(SegmentIndex)
	chart := &ChartData{Kind: kind}

	switch kind {
	case planner.ChartLine:
		chart.Line = aggregateLine(matches, candidates, segmentIndex)
	case planner.ChartBar:
		chart.Bar = aggregateBar(matches, candidates, segmentIndex)
	default:
		chart.Pie = aggregatePie(matches, candidates, segmentIndex)
	}
	return chart, segmentIndex
}

// aggregatePie emits one datum per term, sorted by descending count.
func aggregatePie(matches *MatchMap, candidates []*store.Record, segmentIndex SegmentIndex) []PieDatum {
	data := make([]PieDatum, 0, len(matches.Terms))
	for _, term := range matches.Terms {
		indices := matches.Indices[term]
		ids := make([]string, len(indices))
		for i, index := range indices {
			ids[i] = candidates[index].ID
		}
		segmentIndex[SegmentKey(term)] = ids
		data = append(data, PieDatum{Label: term, Count: len(indices)})
	}

	sort.SliceStable(data, func(i, j int) bool {
		if data[i].Count != data[j].Count {
			return data[i].Count > data[j].Count
		}
		return data[i].Label < data[j].Label
	})
	return data
}

// aggregateLine buckets matches by UTC day, then by term within each day.
// Only days with at least one match are emitted (sparse series).
func aggregateLine(matches *MatchMap, candidates []*store.Record, segmentIndex SegmentIndex) []LineDatum {
	type bucket map[string][]string // term -> record IDs
	days := make(map[string]bucket)

	for _, term := range matches.Terms {
		for _, index := range matches.Indices[term] {
			record := candidates[index]
			day := time.Unix(record.CreatedTs, 0).UTC().Format(time.DateOnly)
			if days[day] == nil {
				days[day] = make(bucket)
			}
			days[day][term] = append(days[day][term], record.ID)
		}
	}

	dayKeys := make([]string, 0, len(days))
	for day := range days {
		dayKeys = append(dayKeys, day)
	}
	sort.Strings(dayKeys)

	data := make([]LineDatum, 0, len(dayKeys))
	for _, day := range dayKeys {
		series := make([]SeriesPoint, 0, len(days[day]))
		for _, term := range matches.Terms {
			ids, ok := days[day][term]
			if !ok {
				continue
			}
			segmentIndex[SegmentKey(day, term)] = ids
			series = append(series, SeriesPoint{Label: term, Count: len(ids)})
		}
		sort.SliceStable(series, func(i, j int) bool {
			if series[i].Count != series[j].Count {
				return series[i].Count > series[j].Count
			}
			return series[i].Label < series[j].Label
		})
		data = append(data, LineDatum{Date: day, Series: series})
	}
	return data
}

// aggregateBar buckets matches by record owner, then by term within each
// group. Records without an owner land in the "unknown" group.
func aggregateBar(matches *MatchMap, candidates []*store.Record, segmentIndex SegmentIndex) []BarDatum {
	type bucket map[string][]string
	groups := make(map[string]bucket)

	for _, term := range matches.Terms {
		for _, index := range matches.Indices[term] {
			record := candidates[index]
			group := record.OwnerID
			if group == "" {
				group = OwnerUnknown
			}
			if groups[group] == nil {
				groups[group] = make(bucket)
			}
			groups[group][term] = append(groups[group][term], record.ID)
		}
	}

	groupKeys := make([]string, 0, len(groups))
	for group := range groups {
		groupKeys = append(groupKeys, group)
	}
	sort.Strings(groupKeys)

	data := make([]BarDatum, 0, len(groupKeys))
	for _, group := range groupKeys {
		series := make([]SeriesPoint, 0, len(groups[group]))
		for _, term := range matches.Terms {
			ids, ok := groups[group][term]
			if !ok {
				continue
			}
			segmentIndex[SegmentKey(group, term)] = ids
			series = append(series, SeriesPoint{Label: term, Count: len(ids)})
		}
		sort.SliceStable(series, func(i, j int) bool {
			if series[i].Count != series[j].Count {
				return series[i].Count > series[j].Count
			}
			return series[i].Label < series[j].Label
		})
		data = append(data, BarDatum{Group: group, Series: series})
	}
	return data
}
