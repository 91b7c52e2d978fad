package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFitLinear_PerfectLine(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 5 + 2*x
	}

	fit := fitLinear(xs, ys)

	assert.InDelta(t, 2.0, fit.Slope, 1e-9)
	assert.InDelta(t, 5.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
}

func TestFitLinear_ConstantSeries(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{7, 7, 7, 7}

	fit := fitLinear(xs, ys)

	assert.Zero(t, fit.Slope)
	assert.InDelta(t, 7.0, fit.Intercept, 1e-9)
	// A flat line fits a constant series exactly.
	assert.Equal(t, 1.0, fit.RSquared)
}

func TestFitLinear_DegenerateX(t *testing.T) {
	fit := fitLinear([]float64{3, 3, 3}, []float64{1, 2, 3})

	assert.Zero(t, fit.Slope)
	assert.InDelta(t, 2.0, fit.Intercept, 1e-9)
	assert.Zero(t, fit.RSquared)
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	inverse := []float64{10, 8, 6, 4, 2}
	flat := []float64{3, 3, 3, 3, 3}

	assert.InDelta(t, 1.0, pearson(a, b), 1e-9)
	assert.InDelta(t, -1.0, pearson(a, inverse), 1e-9)
	assert.Zero(t, pearson(a, flat))

	// Symmetric in its arguments.
	noisy := []float64{1.2, 1.9, 3.4, 3.8, 5.1}
	assert.Equal(t, pearson(a, noisy), pearson(noisy, a))
}

func TestSampleStdDev(t *testing.T) {
	assert.Zero(t, sampleStdDev([]float64{5}))
	assert.Zero(t, sampleStdDev([]float64{5, 5, 5}))
	// Known value: {2,4,4,4,5,5,7,9} has sample stddev ~2.138.
	assert.InDelta(t, 2.138, sampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 0.001)
}

func TestZScoreConfidence(t *testing.T) {
	assert.Zero(t, zScoreConfidence(0))
	assert.InDelta(t, 0.9876, zScoreConfidence(2.5), 0.001)
	assert.InDelta(t, 0.9876, zScoreConfidence(-2.5), 0.001)
	assert.Greater(t, zScoreConfidence(5), zScoreConfidence(2.5))
	assert.LessOrEqual(t, zScoreConfidence(100), 1.0)
}

func TestCorrelationPValue(t *testing.T) {
	assert.Equal(t, 1.0, correlationPValue(0.9, 2))
	assert.Equal(t, 0.0, correlationPValue(1.0, 50))
	assert.Equal(t, 1.0, correlationPValue(0, 50))

	// Stronger correlations and larger samples both shrink p.
	assert.Less(t, correlationPValue(0.8, 30), correlationPValue(0.4, 30))
	assert.Less(t, correlationPValue(0.5, 100), correlationPValue(0.5, 20))
}

func TestBenjaminiHochberg(t *testing.T) {
	// m=4, alpha=0.05: thresholds 0.0125, 0.025, 0.0375, 0.05.
	keep := benjaminiHochberg([]float64{0.9, 0.001, 0.02, 0.8}, 0.05)
	assert.Equal(t, []bool{false, true, true, false}, keep)

	keep = benjaminiHochberg([]float64{0.5, 0.6, 0.7}, 0.05)
	assert.Equal(t, []bool{false, false, false}, keep)

	assert.Empty(t, benjaminiHochberg(nil, 0.05))
}

func TestOverlapConfidence(t *testing.T) {
	assert.Zero(t, overlapConfidence(5, 10))
	assert.InDelta(t, 1-10.0/11.0, overlapConfidence(10, 10), 1e-9)
	assert.Greater(t, overlapConfidence(100, 10), overlapConfidence(20, 10))
	assert.Less(t, overlapConfidence(1000, 10), 1.0)
}

func TestMedianInterval(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	timestamps := []time.Time{
		start,
		start.Add(1 * time.Hour),
		start.Add(2 * time.Hour),
		start.Add(3 * time.Hour),
		start.Add(27 * time.Hour), // one gap does not move the median
	}

	assert.Equal(t, time.Hour, medianInterval(timestamps))
	assert.Equal(t, time.Minute, medianInterval(timestamps[:1]))
}
