package similarity

import (
	"github.com/promptlens/promptlens/internal/errors"
)

// Metric selects the objective for threshold tuning.
type Metric string

const (
	MetricPrecision Metric = "precision"
	MetricRecall    Metric = "recall"
	MetricF1        Metric = "f1"
)

// LabeledPair is one ground-truth example for offline threshold tuning.
type LabeledPair struct {
	A, B  []float32
	Match bool
}

// TuneResult is the outcome of a threshold sweep.
type TuneResult struct {
	Threshold float64
	Precision float64
	Recall    float64
	F1        float64
}

// TuneThreshold sweeps thresholds from start to end (inclusive) in step
// increments against labeled pairs and returns the threshold maximizing the
// chosen metric. Ties keep the first threshold encountered in ascending order.
func TuneThreshold(pairs []LabeledPair, start, end, step float64, metric Metric) (*TuneResult, error) {
	if len(pairs) == 0 {
		return nil, errors.InvalidInput("no labeled pairs provided")
	}
	if step <= 0 || end < start {
		return nil, errors.InvalidInput("invalid sweep range")
	}

	// Score every pair once; the sweep then only compares.
	scores := make([]float64, len(pairs))
	for i, pair := range pairs {
		score, err := Cosine(pair.A, pair.B)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	var best *TuneResult
	for threshold := start; threshold <= end+1e-12; threshold += step {
		var tp, fp, fn float64
		for i, pair := range pairs {
			predicted := scores[i] >= threshold
			switch {
			case predicted && pair.Match:
				tp++
			case predicted && !pair.Match:
				fp++
			case !predicted && pair.Match:
				fn++
			}
		}

		result := &TuneResult{Threshold: threshold}
		if tp+fp > 0 {
			result.Precision = tp / (tp + fp)
		}
		if tp+fn > 0 {
			result.Recall = tp / (tp + fn)
		}
		if result.Precision+result.Recall > 0 {
			result.F1 = 2 * result.Precision * result.Recall / (result.Precision + result.Recall)
		}

		if best == nil || result.metricValue(metric) > best.metricValue(metric) {
			best = result
		}
	}
	return best, nil
}

func (r *TuneResult) metricValue(metric Metric) float64 {
	switch metric {
	case MetricPrecision:
		return r.Precision
	case MetricRecall:
		return r.Recall
	default:
		return r.F1
	}
}
