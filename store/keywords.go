package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
)

// keywordScanCap bounds how many records one keyword aggregation scans.
const keywordScanCap = 5000

// TermCount is a normalized keyword with its occurrence count.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// NormalizeTerm lowercases, trims, and collapses internal whitespace.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// ParseKeywords parses a stored keyword column permissively.
// Accepted shapes: JSON string array, comma-separated string. Anything else
// degrades to a single keyword equal to the whole raw string; callers should
// log that case since it usually signals a data problem.
func ParseKeywords(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, true
	}

	if strings.HasPrefix(raw, "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return parsed, true
		}
	}

	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		keywords := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				keywords = append(keywords, part)
			}
		}
		return keywords, true
	}

	// Neither JSON nor comma-splittable: treat the whole value as one keyword.
	return []string{raw}, false
}

// AggregateKeywords is the find condition for keyword aggregation.
type AggregateKeywords struct {
	OwnerID      *string
	CreatedSince *int64
	CreatedUntil *int64

	// Limit truncates the ranked result. Zero means no truncation.
	Limit int

	// PerRecordDedupe counts each term at most once per record, so one
	// record's repeated tag cannot dominate the ranking.
	PerRecordDedupe bool
}

// AggregateKeywords tallies normalized keywords across the record population
// and returns them ranked by descending frequency (ties broken by term).
func (s *Store) AggregateKeywords(ctx context.Context, agg *AggregateKeywords) ([]TermCount, error) {
	// This scan only reads keyword columns; leave the text and embedding
	// payload out of the result set.
	records, err := s.driver.ListRecords(ctx, &FindRecord{
		OwnerID:        agg.OwnerID,
		CreatedSince:   agg.CreatedSince,
		CreatedUntil:   agg.CreatedUntil,
		ExcludeContent: true,
		Limit:          keywordScanCap,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, record := range records {
		keywords := record.Keywords
		if keywords == nil && record.RawKeywords != "" {
			parsed, ok := ParseKeywords(record.RawKeywords)
			if !ok {
				slog.Warn("record keywords not parseable, counted as single term",
					"record_id", record.ID)
			}
			keywords = parsed
		}

		seen := make(map[string]bool)
		for _, keyword := range keywords {
			term := NormalizeTerm(keyword)
			if term == "" {
				continue
			}
			if agg.PerRecordDedupe {
				if seen[term] {
					continue
				}
				seen[term] = true
			}
			counts[term]++
		}
	}

	ranked := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, TermCount{Term: term, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Term < ranked[j].Term
	})

	if agg.Limit > 0 && len(ranked) > agg.Limit {
		ranked = ranked[:agg.Limit]
	}
	return ranked, nil
}

// TallyKeywords aggregates the keyword fields of an in-memory record set with
// the same normalization and per-record dedupe rules as AggregateKeywords.
// Used by the matching engine to build refinement context from matched records.
func TallyKeywords(records []*Record, perRecordDedupe bool) []TermCount {
	counts := make(map[string]int)
	for _, record := range records {
		seen := make(map[string]bool)
		for _, keyword := range record.Keywords {
			term := NormalizeTerm(keyword)
			if term == "" {
				continue
			}
			if perRecordDedupe {
				if seen[term] {
					continue
				}
				seen[term] = true
			}
			counts[term]++
		}
	}

	ranked := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, TermCount{Term: term, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Term < ranked[j].Term
	})
	return ranked
}
