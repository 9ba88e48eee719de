package formulas

// MaxDrawdown calculates the largest peak-to-trough decline in a value
// series, as a positive fraction (0.25 means a 25% fall from the peak).
// A series that only rises, or has fewer than two points, yields 0.
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}

// CumulativeValues compounds a return series into a cumulative value curve
// starting at 1.0. The curve has len(returns)+1 points.
func CumulativeValues(returns []float64) []float64 {
	values := make([]float64, len(returns)+1)
	values[0] = 1.0
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}
	return values
}
