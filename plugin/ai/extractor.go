package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// maxExtractedKeywords caps how many tags one record receives at ingest.
const maxExtractedKeywords = 12

const extractSystemPrompt = `You extract salient keywords. Output a JSON array of strings only.`

const extractPromptTemplate = `Text:
%s

Extract up to %d concise keywords/phrases (1-5 words each, lowercase, no punctuation) that best represent the content. Return them as a JSON array of strings only.`

// ExtractKeywords uses the LLM to derive a tag list for a record at ingest
// time. Failures degrade to an empty list so ingestion never blocks on the
// model; callers embed the full text instead.
func ExtractKeywords(ctx context.Context, llm LLMService, text string) []string {
	response, err := llm.Complete(ctx, extractSystemPrompt,
		fmt.Sprintf(extractPromptTemplate, text, maxExtractedKeywords))
	if err != nil {
		slog.Warn("keyword extraction failed", "error", err)
		return nil
	}

	keywords := parseExtractedKeywords(response)
	if len(keywords) > maxExtractedKeywords {
		keywords = keywords[:maxExtractedKeywords]
	}
	return keywords
}

// parseExtractedKeywords parses a JSON array, falling back to comma/newline
// splitting for models that ignore the format instruction.
func parseExtractedKeywords(response string) []string {
	response = strings.TrimSpace(response)

	var parsed []string
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		for _, part := range strings.Split(strings.ReplaceAll(response, "\n", ","), ",") {
			part = strings.Trim(part, "-•*\t ")
			if part != "" {
				parsed = append(parsed, part)
			}
		}
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0, len(parsed))
	for _, keyword := range parsed {
		normalized := strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
		normalized = strings.Trim(normalized, ",.;:!?")
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		keywords = append(keywords, normalized)
	}
	return keywords
}
