package insight

import (
	"context"
	"log/slog"

	"github.com/promptlens/promptlens/plugin/ai"
	"github.com/promptlens/promptlens/plugin/ai/cache"
	"github.com/promptlens/promptlens/plugin/ai/planner"
	"github.com/promptlens/promptlens/plugin/ai/similarity"
	"github.com/promptlens/promptlens/store"
)

const (
	// defaultCandidateLimit caps the candidate pool when the caller does not.
	defaultCandidateLimit = 500

	// keywordContextLimit is how many aggregated keywords feed the planner.
	keywordContextLimit = 30
)

// Engine orchestrates the full question-to-chart pipeline.
type Engine struct {
	store    *store.Store
	embedder ai.EmbeddingService
	planner  planner.Planner
	matcher  similarity.Matcher
	segments cache.CacheService
}

// NewEngine creates an insight engine. The segment cache may be nil, in which
// case every drill-down recomputes the pipeline.
func NewEngine(s *store.Store, embedder ai.EmbeddingService, p planner.Planner, matcher similarity.Matcher, segments cache.CacheService) *Engine {
	return &Engine{
		store:    s,
		embedder: embedder,
		planner:  p,
		matcher:  matcher,
		segments: segments,
	}
}

// Query runs plan → fetch → match → aggregate for one question and returns
// chart data plus the segment index for drill-down. An empty match set is
// valid output (an empty chart), not an error.
func (e *Engine) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	find := e.findFromRequest(req)

	// Keyword context is planning grounding only: losing it degrades plan
	// quality, not correctness.
	keywordContext, err := e.store.AggregateKeywords(ctx, &store.AggregateKeywords{
		OwnerID:         find.OwnerID,
		CreatedSince:    find.CreatedSince,
		CreatedUntil:    find.CreatedUntil,
		Limit:           keywordContextLimit,
		PerRecordDedupe: true,
	})
	if err != nil {
		slog.Warn("keyword aggregation for planning context failed", "error", err)
		keywordContext = nil
	}

	plan, err := e.planner.Plan(ctx, req.Question, keywordContext)
	if err != nil {
		return nil, err
	}

	find.Field = &plan.SearchField
	candidates, err := e.store.ListRecords(ctx, find)
	if err != nil {
		return nil, err
	}

	matches, pass, err := e.match(ctx, req.Question, plan, candidates)
	if err != nil {
		return nil, err
	}

	chart, segmentIndex := Aggregate(plan.ChartKind, matches, candidates)
	slog.Info("insight query aggregated",
		"pass", string(pass),
		"chart_kind", string(plan.ChartKind),
		"term_count", len(matches.Terms),
		"candidates", len(candidates))

	result := &QueryResult{
		Plan:         plan,
		Pass:         pass,
		Chart:        chart,
		SegmentIndex: segmentIndex,
	}
	e.cacheSegments(req, segmentIndex)
	return result, nil
}

// match runs the two-pass state machine: Broad over the full pool, then at
// most one Refined pass restricted to Broad's matches. Refinement failures of
// any kind fall back to the Broad result.
func (e *Engine) match(ctx context.Context, question string, plan *planner.Plan, candidates []*store.Record) (*MatchMap, Pass, error) {
	// Pure volume/count question: every candidate matches the synthetic term,
	// no embedding work at all.
	if len(plan.Keywords) == 0 {
		matches := NewMatchMap()
		indices := make([]int, len(candidates))
		for i := range candidates {
			indices[i] = i
		}
		matches.Add(TermAll, indices)
		return matches, PassBroad, nil
	}

	if err := e.store.BackfillEmbeddings(ctx, candidates, plan.SearchField, e.embedder); err != nil {
		return nil, "", err
	}
	candidateVectors := make([][]float32, len(candidates))
	for i, record := range candidates {
		candidateVectors[i] = record.Embedding(plan.SearchField)
	}

	broad, err := e.matchTerms(ctx, plan.Keywords, candidateVectors, nil)
	if err != nil {
		return nil, "", err
	}

	broadIndices := broad.DistinctIndices()
	if len(broadIndices) == 0 {
		return broad, PassBroad, nil
	}

	refined := e.refine(ctx, question, plan, candidates, candidateVectors, broadIndices)
	if refined == nil {
		return broad, PassBroad, nil
	}
	return refined, PassRefined, nil
}

// refine executes the second pass. A nil return means the Broad result stands.
func (e *Engine) refine(ctx context.Context, question string, plan *planner.Plan, candidates []*store.Record, candidateVectors [][]float32, broadIndices []int) *MatchMap {
	matchedRecords := make([]*store.Record, len(broadIndices))
	for i, index := range broadIndices {
		matchedRecords[i] = candidates[index]
	}
	tally := store.TallyKeywords(matchedRecords, true)

	terms, err := e.planner.RefineKeywords(ctx, question, plan.Keywords, tally)
	if err != nil {
		slog.Warn("keyword refinement failed, keeping broad match", "error", err)
		return nil
	}
	if len(terms) == 0 {
		slog.Debug("refinement produced no usable terms, keeping broad match")
		return nil
	}

	// Restrict the second pass to broad matches only; relative indices map
	// back through broadIndices.
	restricted := make([][]float32, len(broadIndices))
	for i, index := range broadIndices {
		restricted[i] = candidateVectors[index]
	}

	refined, err := e.matchTerms(ctx, terms, restricted, broadIndices)
	if err != nil {
		slog.Warn("refined matching failed, keeping broad match", "error", err)
		return nil
	}
	return refined
}

// matchTerms embeds the terms in one batched call and threshold-searches the
// candidate vectors. When indexMap is non-nil, matched indices are translated
// through it back to original candidate positions.
func (e *Engine) matchTerms(ctx context.Context, terms []string, candidateVectors [][]float32, indexMap []int) (*MatchMap, error) {
	termVectors, err := e.embedder.EmbedBatch(ctx, terms)
	if err != nil {
		return nil, err
	}

	matchSets, err := e.matcher.Search(termVectors, candidateVectors)
	if err != nil {
		return nil, err
	}

	matches := NewMatchMap()
	for ti, term := range terms {
		indices := matchSets[ti]
		if indexMap != nil {
			mapped := make([]int, len(indices))
			for i, index := range indices {
				mapped[i] = indexMap[index]
			}
			indices = mapped
		}
		matches.Add(term, indices)
	}
	return matches, nil
}

// findFromRequest converts the caller-facing request into a store find.
func (e *Engine) findFromRequest(req *QueryRequest) *store.FindRecord {
	find := &store.FindRecord{
		OwnerID: req.OwnerID,
		Limit:   req.Limit,
	}
	if find.Limit <= 0 {
		find.Limit = defaultCandidateLimit
	}
	if req.Since != nil {
		since := req.Since.Unix()
		find.CreatedSince = &since
	}
	if req.Until != nil {
		until := req.Until.Unix()
		find.CreatedUntil = &until
	}
	return find
}
