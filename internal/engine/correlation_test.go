package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/insight-engine/internal/models"
)

// wavyValues is a deterministic non-periodic pattern with enough shape for
// lag detection to latch onto.
func wavyValues(count int) []float64 {
	values := make([]float64, count)
	for i := range values {
		x := float64(i)
		values[i] = 100 + 10*math.Sin(x/3) + 5*math.Sin(x/7.3) + x/10
	}
	return values
}

func TestAlignSeries_DenseAgainstCoarseIsOneToOne(t *testing.T) {
	coarse := dailySeries("daily", monday, []float64{1, 2, 3})
	dense := &models.Series{MetricID: "hourly", Samples: make([]models.Sample, 72)}
	for i := range dense.Samples {
		dense.Samples[i] = models.Sample{
			Timestamp: monday.Add(time.Duration(i) * time.Hour),
			Value:     float64(i),
		}
	}

	xs, ys := alignSeries(dense, coarse)

	require.Len(t, xs, coarse.Len())
	require.Len(t, ys, coarse.Len())
	assert.Equal(t, []float64{1, 2, 3}, ys)
}

func TestCorrelatePair_ProportionalSeries(t *testing.T) {
	a := dailySeries("signups", monday, wavyValues(30))
	b := &models.Series{MetricID: "revenue", Samples: make([]models.Sample, 30)}
	for i, s := range a.Samples {
		b.Samples[i] = models.Sample{Timestamp: s.Timestamp, Value: 3*s.Value + 7}
	}

	result := CorrelatePair(a, b, testConfig())

	require.NotNil(t, result)
	assert.Equal(t, "signups", result.MetricA)
	assert.Equal(t, "revenue", result.MetricB)
	assert.Greater(t, result.Coefficient, 0.95)
	assert.Equal(t, 0, result.LagDays)
	assert.Equal(t, 30, result.Overlap)
}

func TestCorrelatePair_Symmetric(t *testing.T) {
	a := dailySeries("a", monday, wavyValues(30))
	b := dailySeries("b", monday, linspace(5, 80, 30))

	ab := CorrelatePair(a, b, testConfig())
	ba := CorrelatePair(b, a, testConfig())

	require.NotNil(t, ab)
	require.NotNil(t, ba)
	assert.InDelta(t, ab.Coefficient, ba.Coefficient, 1e-9)
}

func TestCorrelatePair_InsufficientOverlap(t *testing.T) {
	a := dailySeries("a", monday, linspace(1, 5, 5))
	b := dailySeries("b", monday, linspace(1, 5, 5))

	assert.Nil(t, CorrelatePair(a, b, testConfig()))
}

func TestCorrelatePair_ToleratesClockSkew(t *testing.T) {
	// Daily series an hour apart still align on nearest timestamps.
	a := dailySeries("a", monday, wavyValues(30))
	b := &models.Series{MetricID: "b", Samples: make([]models.Sample, 30)}
	for i, s := range a.Samples {
		b.Samples[i] = models.Sample{Timestamp: s.Timestamp.Add(time.Hour), Value: s.Value}
	}

	result := CorrelatePair(a, b, testConfig())

	require.NotNil(t, result)
	assert.InDelta(t, 1.0, result.Coefficient, 1e-9)
	assert.Equal(t, 30, result.Overlap)
}

func TestCorrelatePair_DisjointRanges(t *testing.T) {
	a := dailySeries("a", monday, wavyValues(30))
	b := dailySeries("b", monday.AddDate(0, 6, 0), wavyValues(30))

	assert.Nil(t, CorrelatePair(a, b, testConfig()))
}

func TestCorrelatePair_FindsLag(t *testing.T) {
	cfg := testConfig()
	cfg.Correlation.LagAnalysis = true
	cfg.Correlation.MaxLagDays = 3

	// b shows the same pattern two days before a does; shifting b forward
	// two days lines the pair up exactly.
	pattern := wavyValues(42)
	a := dailySeries("a", monday, pattern[:40])
	b := dailySeries("b", monday, pattern[2:])

	result := CorrelatePair(a, b, cfg)

	require.NotNil(t, result)
	assert.Equal(t, 2, result.LagDays)
	assert.InDelta(t, 1.0, result.Coefficient, 1e-6)
}

func TestEvaluatePairs_FDRKeepsOnlyRealSignal(t *testing.T) {
	cfg := testConfig()
	cfg.Correlation.FDRCorrection = true
	cfg.Correlation.MinStrength = 0.6

	shape := wavyValues(30)
	a := dailySeries("a", monday, shape)
	b := dailySeries("b", monday, shape)
	// Constant series correlate with nothing (p-value 1).
	flat1 := dailySeries("flat1", monday, linspace(4, 4, 30))
	flat2 := dailySeries("flat2", monday, linspace(9, 9, 30))

	insights := EvaluatePairs([]*models.Series{flat1, a, flat2, b}, cfg)

	require.Len(t, insights, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, insights[0].Metrics)

	evidence, ok := insights[0].Evidence.(models.CorrelationEvidence)
	require.True(t, ok)
	assert.InDelta(t, 1.0, evidence.Coefficient, 1e-9)
	assert.Less(t, evidence.PValue, 0.05)
}

func TestEvaluatePairs_StrengthFilter(t *testing.T) {
	cfg := testConfig()
	cfg.Correlation.MinStrength = 0.99

	a := dailySeries("a", monday, wavyValues(30))
	weak := make([]float64, 30)
	for i, v := range wavyValues(30) {
		// Halve the signal and fold in an unrelated component.
		weak[i] = v/2 + 20*math.Cos(float64(i)/2)
	}
	b := dailySeries("b", monday, weak)

	assert.Empty(t, EvaluatePairs([]*models.Series{a, b}, cfg))
}

func TestEvaluatePairs_DeterministicOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Correlation.MinStrength = 0

	shape := wavyValues(30)
	series := []*models.Series{
		dailySeries("gamma", monday, shape),
		dailySeries("alpha", monday, shape),
		dailySeries("beta", monday, shape),
	}

	first := EvaluatePairs(series, cfg)
	second := EvaluatePairs([]*models.Series{series[2], series[0], series[1]}, cfg)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Metrics, second[i].Metrics)
	}
}
