package insight

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/promptlens/promptlens/plugin/ai/planner"
	"github.com/promptlens/promptlens/plugin/ai/similarity"
	"github.com/promptlens/promptlens/store"
	"github.com/promptlens/promptlens/store/teststore"
)

var (
	vecBilling    = []float32{1, 0, 0}
	vecOnboarding = []float32{0, 1, 0}
	vecOther      = []float32{0, 0, 1}
)

// fakeEmbedder maps normalized text to fixed vectors.
type fakeEmbedder struct {
	vectors    map[string][]float32
	batchCalls int
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, ok := e.vectors[text]
		if !ok {
			return nil, errors.Errorf("no fixture vector for %q", text)
		}
		out[i] = vector
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 3 }

// fakePlanner replays a fixed plan and refinement outcome.
type fakePlanner struct {
	plan        *planner.Plan
	refined     []string
	refineErr   error
	refineCalls int
}

func (p *fakePlanner) Plan(_ context.Context, _ string, _ []store.TermCount) (*planner.Plan, error) {
	return p.plan, nil
}

func (p *fakePlanner) RefineKeywords(_ context.Context, _ string, _ []string, _ []store.TermCount) ([]string, error) {
	p.refineCalls++
	if p.refineErr != nil {
		return nil, p.refineErr
	}
	return p.refined, nil
}

func day(t *testing.T, value string) int64 {
	t.Helper()
	parsed, err := time.Parse(time.DateOnly, value)
	require.NoError(t, err)
	return parsed.Unix()
}

func newTestEngine(driver *teststore.Driver, embedder *fakeEmbedder, p *fakePlanner) *Engine {
	return NewEngine(
		store.New(driver, nil),
		embedder,
		p,
		similarity.NewMatcher(similarity.DefaultThreshold),
		nil,
	)
}

func TestQueryVolumeQuestion(t *testing.T) {
	driver := teststore.New()
	driver.Seed(
		&store.Record{ID: "r1", PromptText: "a", CreatedTs: day(t, "2026-01-01")},
		&store.Record{ID: "r2", PromptText: "b", CreatedTs: day(t, "2026-01-01")},
		&store.Record{ID: "r3", PromptText: "c", CreatedTs: day(t, "2026-01-03")},
	)
	embedder := &fakeEmbedder{}
	p := &fakePlanner{plan: &planner.Plan{
		ChartKind:   planner.ChartLine,
		SearchField: store.FieldPrompt,
		Keywords:    []string{},
	}}
	engine := newTestEngine(driver, embedder, p)

	result, err := engine.Query(context.Background(), &QueryRequest{Question: "how many questions per day?"})
	require.NoError(t, err)

	require.Equal(t, PassBroad, result.Pass)
	require.Equal(t, 0, embedder.batchCalls, "volume questions never embed")
	require.Equal(t, 0, p.refineCalls)

	// Sparse series: only the two days with records appear, the gap day does not.
	require.Len(t, result.Chart.Line, 2)
	require.Equal(t, "2026-01-01", result.Chart.Line[0].Date)
	require.Equal(t, []SeriesPoint{{Label: TermAll, Count: 2}}, result.Chart.Line[0].Series)
	require.Equal(t, "2026-01-03", result.Chart.Line[1].Date)
	require.Equal(t, []SeriesPoint{{Label: TermAll, Count: 1}}, result.Chart.Line[1].Series)

	require.ElementsMatch(t, []string{"r1", "r2"}, result.SegmentIndex[SegmentKey("2026-01-01", TermAll)])
	require.Equal(t, []string{"r3"}, result.SegmentIndex[SegmentKey("2026-01-03", TermAll)])
}

func TestQueryRefinedPass(t *testing.T) {
	driver := teststore.New()
	driver.Seed(
		&store.Record{ID: "r1", PromptText: "billing question", PromptEmbedding: vecBilling, CreatedTs: 1},
		&store.Record{ID: "r2", PromptText: "onboarding question", PromptEmbedding: vecOnboarding, CreatedTs: 2},
		&store.Record{ID: "r3", PromptText: "unrelated", PromptEmbedding: vecOther, CreatedTs: 3},
	)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"billing":    vecBilling,
		"onboarding": vecOnboarding,
	}}
	p := &fakePlanner{
		plan: &planner.Plan{
			ChartKind:   planner.ChartPie,
			SearchField: store.FieldPrompt,
			Keywords:    []string{"billing", "onboarding"},
		},
		refined: []string{"billing"},
	}
	engine := newTestEngine(driver, embedder, p)

	result, err := engine.Query(context.Background(), &QueryRequest{Question: "what do users ask about billing?"})
	require.NoError(t, err)

	require.Equal(t, PassRefined, result.Pass)
	require.Equal(t, 1, p.refineCalls)
	require.Equal(t, []PieDatum{{Label: "billing", Count: 1}}, result.Chart.Pie)
	require.Equal(t, []string{"r1"}, result.SegmentIndex[SegmentKey("billing")])
}

func TestQueryRefineFailureKeepsBroad(t *testing.T) {
	driver := teststore.New()
	driver.Seed(
		&store.Record{ID: "r1", PromptText: "billing question", PromptEmbedding: vecBilling, CreatedTs: 1},
		&store.Record{ID: "r2", PromptText: "onboarding question", PromptEmbedding: vecOnboarding, CreatedTs: 2},
	)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"billing":    vecBilling,
		"onboarding": vecOnboarding,
	}}

	tests := []struct {
		name    string
		planner *fakePlanner
	}{
		{
			name: "refine error",
			planner: &fakePlanner{
				refineErr: errors.New("model unavailable"),
			},
		},
		{
			name: "refine returns nothing",
			planner: &fakePlanner{
				refined: []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.planner.plan = &planner.Plan{
				ChartKind:   planner.ChartPie,
				SearchField: store.FieldPrompt,
				Keywords:    []string{"billing", "onboarding"},
			}
			engine := newTestEngine(driver, embedder, tt.planner)

			result, err := engine.Query(context.Background(), &QueryRequest{Question: "question"})
			require.NoError(t, err)

			require.Equal(t, PassBroad, result.Pass)
			require.Equal(t, 1, tt.planner.refineCalls)
			require.Equal(t, []PieDatum{
				{Label: "billing", Count: 1},
				{Label: "onboarding", Count: 1},
			}, result.Chart.Pie)
		})
	}
}

func TestQueryRefinedSubsetOfBroad(t *testing.T) {
	// The refined term would also match r3, but r3 was not a broad match, so
	// the second pass must not see it.
	driver := teststore.New()
	driver.Seed(
		&store.Record{ID: "r1", PromptText: "a", PromptEmbedding: vecBilling, CreatedTs: 1},
		&store.Record{ID: "r2", PromptText: "b", PromptEmbedding: vecOnboarding, CreatedTs: 2},
		&store.Record{ID: "r3", PromptText: "c", PromptEmbedding: vecOther, CreatedTs: 3},
	)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"billing": vecBilling,
		"broad":   []float32{1, 1, 0}, // matches r1 and r2, not r3
		"wide":    []float32{1, 1, 1}, // would match everything
	}}
	p := &fakePlanner{
		plan: &planner.Plan{
			ChartKind:   planner.ChartPie,
			SearchField: store.FieldPrompt,
			Keywords:    []string{"broad"},
		},
		refined: []string{"wide"},
	}
	engine := newTestEngine(driver, embedder, p)

	result, err := engine.Query(context.Background(), &QueryRequest{Question: "question"})
	require.NoError(t, err)

	require.Equal(t, PassRefined, result.Pass)
	require.Equal(t, []string{"r1", "r2"}, result.SegmentIndex[SegmentKey("wide")])
}

func TestQueryNoMatchesIsEmptyChart(t *testing.T) {
	driver := teststore.New()
	driver.Seed(
		&store.Record{ID: "r1", PromptText: "a", PromptEmbedding: vecOther, CreatedTs: 1},
	)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"billing": vecBilling,
	}}
	p := &fakePlanner{plan: &planner.Plan{
		ChartKind:   planner.ChartPie,
		SearchField: store.FieldPrompt,
		Keywords:    []string{"billing"},
	}}
	engine := newTestEngine(driver, embedder, p)

	result, err := engine.Query(context.Background(), &QueryRequest{Question: "question"})
	require.NoError(t, err)

	require.Equal(t, PassBroad, result.Pass)
	require.Equal(t, 0, p.refineCalls, "nothing to refine when broad matched nothing")
	require.Equal(t, []PieDatum{{Label: "billing", Count: 0}}, result.Chart.Pie)
	require.Empty(t, result.SegmentIndex[SegmentKey("billing")])
}

func TestQueryBackfillsMissingEmbeddings(t *testing.T) {
	driver := teststore.New()
	records := []*store.Record{
		{ID: "r1", PromptText: "billing question", CreatedTs: 1},
		{ID: "r2", PromptText: "unrelated", PromptEmbedding: vecOther, CreatedTs: 2},
	}
	driver.Seed(records...)
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"billing":          vecBilling,
		"billing question": vecBilling,
	}}
	p := &fakePlanner{plan: &planner.Plan{
		ChartKind:   planner.ChartPie,
		SearchField: store.FieldPrompt,
		Keywords:    []string{"billing"},
	}}
	engine := newTestEngine(driver, embedder, p)

	result, err := engine.Query(context.Background(), &QueryRequest{Question: "question"})
	require.NoError(t, err)

	require.Equal(t, 1, driver.EmbeddingWrites, "only the record missing its embedding is backfilled")
	require.Equal(t, []string{"r1"}, result.SegmentIndex[SegmentKey("billing")])
}

func TestMatchMapDistinctIndices(t *testing.T) {
	m := NewMatchMap()
	m.Add("billing", []int{3, 1})
	m.Add("refund", []int{1, 2})
	m.Add("empty", nil)

	require.Equal(t, []int{1, 2, 3}, m.DistinctIndices())
	require.Equal(t, []string{"billing", "refund", "empty"}, m.Terms)
}
