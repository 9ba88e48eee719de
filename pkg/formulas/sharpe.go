package formulas

import "math"

// SharpeRatio calculates the annualized Sharpe ratio of a periodic return
// series.
//
// Sharpe = (mean periodic return - periodic risk-free rate) / stddev
// Annualized: Sharpe x sqrt(periods per year)
//
// riskFreeRate is annual (0.02 for 2%); periodsPerYear is the sampling
// frequency (252 for daily returns). Returns 0 when the series is too short
// or has zero dispersion.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return 0
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sharpe := (Mean(returns) - periodicRiskFree) / stdDev

	return sharpe * math.Sqrt(float64(periodsPerYear))
}

// CalmarRatio relates annualized return to the worst historical drawdown.
// Returns 0 when there has been no drawdown.
func CalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualizedReturn / math.Abs(maxDrawdown)
}
