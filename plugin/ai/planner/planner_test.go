package planner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/promptlens/promptlens/internal/errors"
	"github.com/promptlens/promptlens/store"
)

// cannedLLM replays a fixed response, or an error when err is set.
type cannedLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (l *cannedLLM) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	l.lastPrompt = userPrompt
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     *Plan
	}{
		{
			name:     "valid plan",
			response: `{"chart_kind":"line","search_field":"response","keywords":["Billing","Refund"]}`,
			want: &Plan{
				ChartKind:   ChartLine,
				SearchField: store.FieldResponse,
				Keywords:    []string{"billing", "refund"},
			},
		},
		{
			name: "fenced json",
			response: "```json\n" +
				`{"chart_kind":"pie","search_field":"prompt","keywords":["onboarding"]}` +
				"\n```",
			want: &Plan{
				ChartKind:   ChartPie,
				SearchField: store.FieldPrompt,
				Keywords:    []string{"onboarding"},
			},
		},
		{
			name:     "empty keywords means volume question",
			response: `{"chart_kind":"line","search_field":"prompt","keywords":[]}`,
			want: &Plan{
				ChartKind:   ChartLine,
				SearchField: store.FieldPrompt,
				Keywords:    []string{},
			},
		},
		{
			name:     "not json degrades to fallback",
			response: "I think you want a pie chart of billing questions.",
			want:     FallbackPlan(),
		},
		{
			name:     "unknown chart kind degrades to fallback",
			response: `{"chart_kind":"scatter","search_field":"prompt","keywords":[]}`,
			want:     FallbackPlan(),
		},
		{
			name:     "unknown search field degrades to fallback",
			response: `{"chart_kind":"pie","search_field":"title","keywords":[]}`,
			want:     FallbackPlan(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLLMPlanner(&cannedLLM{response: tt.response})
			got, err := p.Plan(context.Background(), "what do users ask about?", nil)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanProviderErrorSurfaced(t *testing.T) {
	p := NewLLMPlanner(&cannedLLM{err: errors.ProviderFailure("model unavailable", nil)})
	_, err := p.Plan(context.Background(), "question", nil)
	if !errors.IsCode(err, errors.ErrCodeProviderFailure) {
		t.Errorf("expected %s, got %v", errors.ErrCodeProviderFailure, err)
	}
}

func TestPlanKeywordContextInPrompt(t *testing.T) {
	llm := &cannedLLM{response: `{"chart_kind":"pie","search_field":"prompt","keywords":[]}`}
	p := NewLLMPlanner(llm)
	_, err := p.Plan(context.Background(), "question", []store.TermCount{
		{Term: "billing", Count: 7},
		{Term: "refund", Count: 3},
	})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "- billing: 7") {
		t.Errorf("prompt missing keyword context, got:\n%s", llm.lastPrompt)
	}
}

func TestRefineKeywords(t *testing.T) {
	p := NewLLMPlanner(&cannedLLM{response: `{"keywords":["Billing","billing","refund"]}`})
	got, err := p.RefineKeywords(context.Background(), "question", []string{"billing", "payments", "refund"}, nil)
	if err != nil {
		t.Fatalf("RefineKeywords() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"billing", "refund"}) {
		t.Errorf("RefineKeywords() = %v, want [billing refund]", got)
	}
}

func TestRefineKeywordsParseFailureIsError(t *testing.T) {
	p := NewLLMPlanner(&cannedLLM{response: "not json"})
	_, err := p.RefineKeywords(context.Background(), "question", []string{"billing"}, nil)
	if !errors.IsCode(err, errors.ErrCodePlanParse) {
		t.Errorf("expected %s, got %v", errors.ErrCodePlanParse, err)
	}
}

func TestSanitizeKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "normalizes and dedupes",
			in:   []string{"Billing", "  billing ", "API  Errors"},
			want: []string{"billing", "api errors"},
		},
		{
			name: "drops field echoes",
			in:   []string{"prompt", "user prompts", "response quality", "billing"},
			want: []string{"billing"},
		},
		{
			name: "drops blanks",
			in:   []string{"", "   ", "refund"},
			want: []string{"refund"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeKeywords(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sanitizeKeywords(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeKeywordsCap(t *testing.T) {
	in := make([]string, 0, MaxPlanKeywords+5)
	for i := 0; i < MaxPlanKeywords+5; i++ {
		in = append(in, fmt.Sprintf("term-%02d", i))
	}
	got := sanitizeKeywords(in)
	if len(got) != MaxPlanKeywords {
		t.Errorf("sanitizeKeywords() kept %d terms, want %d", len(got), MaxPlanKeywords)
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fences", in: `{"a":1}`, want: `{"a":1}`},
		{name: "plain fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("stripMarkdownFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
