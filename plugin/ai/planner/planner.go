// Package planner turns an analyst's question into a structured chart plan
// using a language model, with safe fallbacks for unusable model output.
package planner

import (
	"context"
	"strings"

	"github.com/promptlens/promptlens/store"
)

// ChartKind is the shape of the aggregation the caller wants.
type ChartKind string

const (
	// ChartPie is one slice per term.
	ChartPie ChartKind = "pie"
	// ChartLine is a per-day time series.
	ChartLine ChartKind = "line"
	// ChartBar is one group per record owner.
	ChartBar ChartKind = "bar"
)

// IsValid reports whether the chart kind is known.
func (k ChartKind) IsValid() bool {
	return k == ChartPie || k == ChartLine || k == ChartBar
}

// MaxPlanKeywords caps how many category terms one plan may carry.
const MaxPlanKeywords = 20

// Plan is the structured output of the planning step. Immutable once produced.
type Plan struct {
	ChartKind   ChartKind
	SearchField store.Field
	// Keywords is the ordered category set. Empty means a pure volume/count
	// question: every candidate matches the synthetic "all" term downstream.
	Keywords []string
}

// FallbackPlan is the safe default used when model output cannot be parsed.
func FallbackPlan() *Plan {
	return &Plan{
		ChartKind:   ChartPie,
		SearchField: store.FieldPrompt,
		Keywords:    []string{},
	}
}

// Planner produces plans and refined keyword sets. Implementations must treat
// model output as untrusted and validate before use.
type Planner interface {
	// Plan builds a chart plan for the question. Keyword context is the
	// frequency-ranked tag summary of the candidate population.
	Plan(ctx context.Context, question string, keywordContext []store.TermCount) (*Plan, error)

	// RefineKeywords selects a refined minimal keyword set from the tally of
	// first-pass matches, grounded by the question and the original set.
	RefineKeywords(ctx context.Context, question string, original []string, tally []store.TermCount) ([]string, error)
}

// sanitizeKeywords normalizes, dedupes, and caps a model-produced keyword
// list. Terms containing the literal search field names are dropped so the
// model cannot echo the data field back as a category.
func sanitizeKeywords(keywords []string) []string {
	seen := make(map[string]bool)
	sanitized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		term := store.NormalizeTerm(keyword)
		if term == "" || seen[term] {
			continue
		}
		if strings.Contains(term, string(store.FieldPrompt)) || strings.Contains(term, string(store.FieldResponse)) {
			continue
		}
		seen[term] = true
		sanitized = append(sanitized, term)
		if len(sanitized) >= MaxPlanKeywords {
			break
		}
	}
	return sanitized
}
