// Package insight implements the question-to-chart pipeline: plan the query,
// match candidate records against category terms by embedding similarity in
// two passes, aggregate the matches into chart data, and resolve chart
// segments back to the underlying records.
package insight

import (
	"sort"
	"time"

	"github.com/promptlens/promptlens/plugin/ai/planner"
)

// Pass identifies which matching stage produced a MatchMap.
type Pass string

const (
	// PassBroad is the first pass over the full candidate pool.
	PassBroad Pass = "broad"
	// PassRefined is the second pass, restricted to broad-pass matches.
	PassRefined Pass = "refined"
)

// TermAll is the synthetic term under which every candidate matches when the
// plan carries no keywords (pure volume/count questions).
const TermAll = "all"

// MatchMap holds, per term, the candidate indices whose similarity met the
// threshold in one matching pass. Terms preserves insertion order.
type MatchMap struct {
	Terms   []string
	Indices map[string][]int
}

// NewMatchMap creates an empty MatchMap.
func NewMatchMap() *MatchMap {
	return &MatchMap{Indices: make(map[string][]int)}
}

// Add records the matched indices for a term.
func (m *MatchMap) Add(term string, indices []int) {
	if _, ok := m.Indices[term]; !ok {
		m.Terms = append(m.Terms, term)
	}
	m.Indices[term] = indices
}

// DistinctIndices returns the sorted union of all matched indices.
func (m *MatchMap) DistinctIndices() []int {
	seen := make(map[int]bool)
	for _, indices := range m.Indices {
		for _, index := range indices {
			seen[index] = true
		}
	}
	distinct := make([]int, 0, len(seen))
	for index := range seen {
		distinct = append(distinct, index)
	}
	sort.Ints(distinct)
	return distinct
}

// QueryRequest is the caller-facing request shape of the pipeline.
type QueryRequest struct {
	Question string     `json:"question"`
	OwnerID  *string    `json:"owner,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
	// Limit caps the candidate pool. Zero means the engine default.
	Limit int `json:"limit,omitempty"`
}

// DrillDownRequest asks for the literal records behind one chart segment.
type DrillDownRequest struct {
	QueryRequest
	SegmentKey string `json:"segmentKey"`
}

// PieDatum is one pie slice.
type PieDatum struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SeriesPoint is one per-term count inside a line or bar bucket.
type SeriesPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LineDatum is one day bucket. Days without matches are not emitted: the
// series is sparse, callers must zero-fill if they need dense axes.
type LineDatum struct {
	Date   string        `json:"date"` // UTC day, YYYY-MM-DD
	Series []SeriesPoint `json:"series"`
}

// BarDatum is one owner-group bucket.
type BarDatum struct {
	Group  string        `json:"group"`
	Series []SeriesPoint `json:"series"`
}

// ChartData is the chart-shaped aggregation; exactly one of the three slices
// is populated, matching Kind.
type ChartData struct {
	Kind planner.ChartKind `json:"chartKind"`
	Pie  []PieDatum        `json:"pie,omitempty"`
	Line []LineDatum       `json:"line,omitempty"`
	Bar  []BarDatum        `json:"bar,omitempty"`
}

// SegmentIndex maps a chart segment key to the contributing record IDs. It is
// derived in the same pass as the chart data, so a datum's count always
// equals the length of its segment's ID list.
type SegmentIndex map[string][]string

// QueryResult is the caller-facing response shape of the pipeline.
type QueryResult struct {
	Plan         *planner.Plan `json:"-"`
	Pass         Pass          `json:"-"`
	Chart        *ChartData    `json:"chart"`
	SegmentIndex SegmentIndex  `json:"segmentIndex"`
}

// DrillDownRecord is the literal record view returned for a segment.
type DrillDownRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner"`
	CreatedAt    time.Time `json:"createdAt"`
	PromptText   string    `json:"promptText"`
	ResponseText string    `json:"responseText"`
}
