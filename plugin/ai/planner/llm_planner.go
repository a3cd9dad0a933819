package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/promptlens/promptlens/internal/errors"
	"github.com/promptlens/promptlens/plugin/ai"
	"github.com/promptlens/promptlens/store"
)

// planContextTerms caps how many aggregated keywords are shown to the model.
const planContextTerms = 30

const planSystemPrompt = `You classify analytics questions about a log of prompt/response interactions into a chart plan. Output JSON only, no markdown, no commentary.`

const planPromptTemplate = `Question: %s

Most frequent keywords across the records (term: count):
%s

Produce a JSON object with exactly these fields:
- "chart_kind": "line" if the question implies a trend over time, otherwise "pie"
- "search_field": "prompt" if the question is about what users asked, "response" if it is about what the assistant answered
- "keywords": a minimal covering set of category terms (at most %d). Leave it an empty array when the question asks about overall volume or counts without naming categories. Never use the words "prompt" or "response" as a category.

Output only the JSON object.`

const refineSystemPrompt = `You refine keyword category sets for analytics over a log of prompt/response interactions. Output JSON only.`

const refinePromptTemplate = `Question: %s

Current category set: %s

Keywords tallied from the records that matched the current set (term: count):
%s

If the current set already covers the question well, return it unchanged. Otherwise return a smaller or better-targeted set drawn from the tallied keywords. Produce a JSON object with one field:
- "keywords": the refined category terms (at most %d)

Output only the JSON object.`

// LLMPlanner implements Planner on a chat completion service.
type LLMPlanner struct {
	llm ai.LLMService
}

// NewLLMPlanner creates a new LLM-backed planner.
func NewLLMPlanner(llm ai.LLMService) *LLMPlanner {
	return &LLMPlanner{llm: llm}
}

// planResponse is the expected JSON structure from the model.
type planResponse struct {
	ChartKind   string   `json:"chart_kind"`
	SearchField string   `json:"search_field"`
	Keywords    []string `json:"keywords"`
}

// Plan builds a chart plan for the question. Malformed or schema-violating
// model output degrades to FallbackPlan rather than failing the query;
// provider failures are surfaced.
func (p *LLMPlanner) Plan(ctx context.Context, question string, keywordContext []store.TermCount) (*Plan, error) {
	prompt := fmt.Sprintf(planPromptTemplate,
		question,
		formatTermCounts(keywordContext, planContextTerms),
		MaxPlanKeywords,
	)

	response, err := p.llm.Complete(ctx, planSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	plan, err := parsePlanResponse(response)
	if err != nil {
		slog.Warn("plan response unusable, using fallback plan",
			"error", err,
			"question_length", len(question))
		return FallbackPlan(), nil
	}
	return plan, nil
}

// RefineKeywords asks the model for a refined keyword set. Unlike Plan, parse
// failures are returned to the caller: the matching engine falls back to its
// broad-pass result instead of a default plan.
func (p *LLMPlanner) RefineKeywords(ctx context.Context, question string, original []string, tally []store.TermCount) ([]string, error) {
	prompt := fmt.Sprintf(refinePromptTemplate,
		question,
		strings.Join(original, ", "),
		formatTermCounts(tally, planContextTerms),
		MaxPlanKeywords,
	)

	response, err := p.llm.Complete(ctx, refineSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(stripMarkdownFences(response)), &parsed); err != nil {
		return nil, errors.PlanParse("refine response is not valid JSON", err)
	}
	return sanitizeKeywords(parsed.Keywords), nil
}

// parsePlanResponse validates untrusted model output against the plan schema.
func parsePlanResponse(response string) (*Plan, error) {
	var parsed planResponse
	if err := json.Unmarshal([]byte(stripMarkdownFences(response)), &parsed); err != nil {
		return nil, errors.PlanParse("plan response is not valid JSON", err)
	}

	kind := ChartKind(strings.ToLower(strings.TrimSpace(parsed.ChartKind)))
	if !kind.IsValid() {
		return nil, errors.PlanParse(fmt.Sprintf("unknown chart kind: %q", parsed.ChartKind), nil)
	}

	field := store.Field(strings.ToLower(strings.TrimSpace(parsed.SearchField)))
	if !field.IsValid() {
		return nil, errors.PlanParse(fmt.Sprintf("unknown search field: %q", parsed.SearchField), nil)
	}

	return &Plan{
		ChartKind:   kind,
		SearchField: field,
		Keywords:    sanitizeKeywords(parsed.Keywords),
	}, nil
}

// stripMarkdownFences extracts the body of a ```-fenced block if the model
// wrapped its JSON despite instructions.
func stripMarkdownFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}

	var body []string
	inFence := false
	for _, line := range strings.Split(response, "\n") {
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			body = append(body, line)
		}
	}
	return strings.Join(body, "\n")
}

// formatTermCounts renders a ranked tally as prompt context.
func formatTermCounts(terms []store.TermCount, limit int) string {
	if len(terms) == 0 {
		return "(none)"
	}
	if len(terms) > limit {
		terms = terms[:limit]
	}
	lines := make([]string, len(terms))
	for i, tc := range terms {
		lines[i] = fmt.Sprintf("- %s: %d", tc.Term, tc.Count)
	}
	return strings.Join(lines, "\n")
}
