package ai

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/promptlens/promptlens/internal/errors"
)

func TestNormalizeEmbeddingInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses whitespace",
			in:   "  how   do\nrefunds\twork  ",
			want: "how do refunds work",
		},
		{
			name: "empty stays empty",
			in:   "   \n\t ",
			want: "",
		},
		{
			name: "short text untouched",
			in:   "cancel my plan",
			want: "cancel my plan",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmbeddingInput(tt.in); got != tt.want {
				t.Errorf("NormalizeEmbeddingInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmbeddingInputTruncation(t *testing.T) {
	long := strings.Repeat("a", embeddingMaxChars+100)
	got := NormalizeEmbeddingInput(long)
	if len([]rune(got)) != embeddingMaxChars {
		t.Errorf("truncated length = %d runes, want %d", len([]rune(got)), embeddingMaxChars)
	}

	// Truncation must never split a multi-byte rune.
	wide := strings.Repeat("日", embeddingMaxChars+100)
	got = NormalizeEmbeddingInput(wide)
	runes := []rune(got)
	if len(runes) != embeddingMaxChars {
		t.Errorf("truncated length = %d runes, want %d", len(runes), embeddingMaxChars)
	}
	for _, r := range runes {
		if r != '日' {
			t.Fatalf("truncation corrupted rune: %q", r)
		}
	}
}

func TestEmbedBatchRejectsEmptyInput(t *testing.T) {
	s := &embeddingService{model: "test-model", dimensions: 4}

	_, err := s.EmbedBatch(context.Background(), nil)
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("EmbedBatch(nil): expected %s, got %v", errors.ErrCodeInvalidInput, err)
	}

	// Fails before any provider call, so the nil client is never touched.
	_, err = s.EmbedBatch(context.Background(), []string{"valid", "   "})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("EmbedBatch(blank): expected %s, got %v", errors.ErrCodeInvalidInput, err)
	}
}

func TestParseExtractedKeywords(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "json array",
			response: `["Billing", "refund policy", "billing"]`,
			want:     []string{"billing", "refund policy"},
		},
		{
			name:     "comma separated fallback",
			response: "billing, refund policy, API errors",
			want:     []string{"billing", "refund policy", "api errors"},
		},
		{
			name:     "bulleted lines fallback",
			response: "- billing\n- refund policy\n",
			want:     []string{"billing", "refund policy"},
		},
		{
			name:     "empty response",
			response: "",
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseExtractedKeywords(tt.response)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseExtractedKeywords(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestExtractKeywordsCap(t *testing.T) {
	terms := make([]string, 0, maxExtractedKeywords+5)
	for i := 0; i < maxExtractedKeywords+5; i++ {
		terms = append(terms, strings.Repeat("x", i+1))
	}
	llm := &staticLLM{response: `["` + strings.Join(terms, `","`) + `"]`}

	got := ExtractKeywords(context.Background(), llm, "some ingested text")
	if len(got) != maxExtractedKeywords {
		t.Errorf("ExtractKeywords() kept %d keywords, want %d", len(got), maxExtractedKeywords)
	}
}

func TestExtractKeywordsFailureDegrades(t *testing.T) {
	llm := &staticLLM{err: errors.ProviderFailure("model unavailable", nil)}
	if got := ExtractKeywords(context.Background(), llm, "some text"); got != nil {
		t.Errorf("ExtractKeywords() = %v, want nil on provider failure", got)
	}
}

// staticLLM satisfies LLMService with a fixed reply.
type staticLLM struct {
	response string
	err      error
}

func (l *staticLLM) Complete(_ context.Context, _, _ string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}
