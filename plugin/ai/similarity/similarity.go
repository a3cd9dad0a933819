// Package similarity provides pure in-process cosine similarity search over
// embedding vectors. No I/O happens here.
package similarity

import (
	"math"
	"sort"

	"github.com/promptlens/promptlens/internal/errors"
)

// DefaultThreshold is the cosine similarity floor for a candidate to count as
// a match when no per-call threshold is given.
const DefaultThreshold = 0.2

// Cosine computes the cosine similarity between two equal-length vectors.
// If either vector has zero magnitude the similarity is 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.DimensionMismatch(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Match is one scored candidate.
type Match struct {
	Index int
	Score float64
}

// Matcher performs threshold and ranking searches. A Matcher is an immutable
// value; the configured threshold is fixed at construction and per-call
// overrides never mutate shared state, so concurrent queries cannot interfere.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given default threshold.
// Non-positive thresholds fall back to DefaultThreshold.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{threshold: threshold}
}

// Threshold returns the matcher's default threshold.
func (m Matcher) Threshold() float64 {
	return m.threshold
}

// Search runs SearchWithThreshold at the matcher's default threshold.
func (m Matcher) Search(queries, candidates [][]float32) ([][]int, error) {
	return m.SearchWithThreshold(queries, candidates, m.threshold)
}

// SearchWithThreshold returns, for each query vector, the indices of all
// candidates whose similarity meets or exceeds the threshold. Nil candidate
// vectors (records that could not be embedded) never match.
func (m Matcher) SearchWithThreshold(queries, candidates [][]float32, threshold float64) ([][]int, error) {
	results := make([][]int, len(queries))
	for qi, query := range queries {
		matched := []int{}
		for ci, candidate := range candidates {
			if candidate == nil {
				continue
			}
			score, err := Cosine(query, candidate)
			if err != nil {
				return nil, err
			}
			if score >= threshold {
				matched = append(matched, ci)
			}
		}
		results[qi] = matched
	}
	return results, nil
}

// BestMatch returns the highest-scoring candidate for the query, or nil when
// there are no usable candidates.
func (m Matcher) BestMatch(query []float32, candidates [][]float32) (*Match, error) {
	best := (*Match)(nil)
	for ci, candidate := range candidates {
		if candidate == nil {
			continue
		}
		score, err := Cosine(query, candidate)
		if err != nil {
			return nil, err
		}
		if best == nil || score > best.Score {
			best = &Match{Index: ci, Score: score}
		}
	}
	return best, nil
}

// TopK returns the k highest-scoring candidates in descending score order.
// Ties are broken by ascending candidate index for determinism.
func (m Matcher) TopK(query []float32, candidates [][]float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(candidates))
	for ci, candidate := range candidates {
		if candidate == nil {
			continue
		}
		score, err := Cosine(query, candidate)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Index: ci, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
