// Package formulas provides the pure statistical building blocks used by the
// performance engine: return series construction, dispersion measures, and
// the annualization conventions shared by every risk metric.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Returns converts a value series to simple periodic returns.
// Returns[i] = (Value[i+1] - Value[i]) / Value[i]; zero-valued periods
// contribute a zero return rather than a division by zero.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// TotalReturn compounds a return series into a single cumulative return.
// A series of daily returns [0.01, -0.02] yields (1.01 * 0.98) - 1.
func TotalReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	compounded := 1.0
	for _, r := range returns {
		compounded *= 1 + r
	}
	return compounded - 1
}

// AnnualizedReturn converts a total return over len(returns) periods into an
// annual rate given the sampling frequency (252 for daily, 12 for monthly).
func AnnualizedReturn(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 || periodsPerYear <= 0 {
		return 0
	}

	total := TotalReturn(returns)
	if total <= -1 {
		return -1
	}

	exponent := float64(periodsPerYear) / float64(len(returns))
	return math.Pow(1+total, exponent) - 1
}

// AnnualizedVolatility scales the standard deviation of periodic returns by
// sqrt(periods per year).
func AnnualizedVolatility(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	return StdDev(returns) * math.Sqrt(float64(periodsPerYear))
}
