package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturns(t *testing.T) {
	values := []float64{100, 110, 99}
	returns := Returns(values)

	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestReturns_ShortAndZeroSeries(t *testing.T) {
	assert.Empty(t, Returns(nil))
	assert.Empty(t, Returns([]float64{100}))

	// A zero-valued period must not divide by zero
	returns := Returns([]float64{0, 100})
	assert.Equal(t, []float64{0}, returns)
}

func TestTotalReturn_Compounds(t *testing.T) {
	total := TotalReturn([]float64{0.10, -0.10})
	assert.InDelta(t, -0.01, total, 1e-9)

	assert.Equal(t, 0.0, TotalReturn(nil))
}

func TestAnnualizedReturn(t *testing.T) {
	// One daily return of 0.1% annualizes to (1.001)^252 - 1
	got := AnnualizedReturn([]float64{0.001}, 252)
	want := math.Pow(1.001, 252) - 1
	assert.InDelta(t, want, got, 1e-9)

	// Total wipeout cannot annualize past -100%
	assert.Equal(t, -1.0, AnnualizedReturn([]float64{-1.0}, 252))
	assert.Equal(t, 0.0, AnnualizedReturn(nil, 252))
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, -0.02}
	got := AnnualizedVolatility(returns, 252)
	want := StdDev(returns) * math.Sqrt(252)

	assert.InDelta(t, want, got, 1e-12)
	assert.Equal(t, 0.0, AnnualizedVolatility([]float64{0.01}, 252))
}

func TestSharpeRatio(t *testing.T) {
	// Constant positive returns have zero dispersion
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.02, 252))

	returns := []float64{0.02, -0.01, 0.015, 0.005}
	got := SharpeRatio(returns, 0.02, 252)
	want := (Mean(returns) - 0.02/252) / StdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, want, got, 1e-12)

	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01}, 0.02, 252))
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 120, trough 90: 25% drawdown
	assert.InDelta(t, 0.25, MaxDrawdown([]float64{100, 120, 90, 100}), 1e-9)

	// Monotonic rise has none
	assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 110, 120}))

	assert.Equal(t, 0.0, MaxDrawdown([]float64{100}))
}

func TestCumulativeValues(t *testing.T) {
	curve := CumulativeValues([]float64{0.10, -0.50})

	assert.Len(t, curve, 3)
	assert.Equal(t, 1.0, curve[0])
	assert.InDelta(t, 1.10, curve[1], 1e-9)
	assert.InDelta(t, 0.55, curve[2], 1e-9)
}

func TestCalmarRatio(t *testing.T) {
	assert.InDelta(t, 0.5, CalmarRatio(0.10, 0.20), 1e-9)
	assert.Equal(t, 0.0, CalmarRatio(0.10, 0))
}

func TestValueAtRisk(t *testing.T) {
	// 20 returns, 95% confidence: the tail is the single worst return
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = float64(ifMinus(i)) * 0.01
	}
	returns[7] = -0.30

	assert.InDelta(t, -0.30, ValueAtRisk(returns, 0.95), 1e-9)
	assert.Equal(t, 0.0, ValueAtRisk(nil, 0.95))
}

func TestConditionalValueAtRisk(t *testing.T) {
	// 40 returns at 95%: the tail is the two worst, CVaR their mean
	returns := make([]float64, 40)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[3] = -0.40
	returns[29] = -0.20

	assert.InDelta(t, -0.30, ConditionalValueAtRisk(returns, 0.95), 1e-9)
	assert.Equal(t, 0.0, ConditionalValueAtRisk(nil, 0.95))
}

// CVaR can never be better than VaR: the tail mean is at or below its edge.
func TestCVaRNeverExceedsVaR(t *testing.T) {
	returns := []float64{0.02, -0.05, 0.01, -0.12, 0.03, -0.01, 0.04, -0.08}

	for _, conf := range []float64{0.90, 0.95, 0.99} {
		vaR := ValueAtRisk(returns, conf)
		cvar := ConditionalValueAtRisk(returns, conf)
		assert.LessOrEqual(t, cvar, vaR, "confidence %v", conf)
	}
}

func TestMeanStdDevVariance(t *testing.T) {
	data := []float64{1, 2, 3, 4}

	assert.InDelta(t, 2.5, Mean(data), 1e-9)
	assert.InDelta(t, math.Sqrt(Variance(data)), StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.Equal(t, 0.0, Variance([]float64{5}))
}

// alternate sign helper for building mixed series
func ifMinus(i int) int {
	if i%2 == 0 {
		return i
	}
	return -i
}
