package formulas

import (
	"math"
	"sort"
)

// ValueAtRisk calculates historical VaR at the given confidence level.
// For confidence 0.95 it is the 5th-percentile periodic return: the loss
// threshold exceeded in only (1-confidence) of observed periods. The value
// is negative when the tail is a loss.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := tailCount(len(sorted), confidence) - 1
	if idx < 0 {
		idx = 0
	}

	return sorted[idx]
}

// ConditionalValueAtRisk calculates historical CVaR (expected shortfall):
// the mean of the returns at or beyond the VaR threshold.
func ConditionalValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	n := tailCount(len(sorted), confidence)
	tail := sorted[:n]

	sum := 0.0
	for _, r := range tail {
		sum += r
	}
	return sum / float64(len(tail))
}

// tailCount returns how many observations fall in the loss tail, at least 1
// and at most the series length.
func tailCount(n int, confidence float64) int {
	count := int(math.Ceil(float64(n) * (1.0 - confidence)))
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	return count
}
