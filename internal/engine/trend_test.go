package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/insight-engine/internal/models"
)

func TestDetectTrend_LinearIncrease(t *testing.T) {
	cfg := testConfig()
	cfg.Trend.WindowDays = 30

	series := dailySeries("daily_active_users", monday, linspace(100, 150, 30))
	insight := DetectTrend(series, cfg)

	require.NotNil(t, insight)
	assert.Equal(t, models.InsightTypeTrend, insight.Type)
	assert.Equal(t, []string{"daily_active_users"}, insight.Metrics)

	evidence, ok := insight.Evidence.(models.TrendEvidence)
	require.True(t, ok)
	assert.Equal(t, models.TrendIncreasing, evidence.Direction)
	assert.InDelta(t, 50.0, evidence.PercentChange, 1.0)
	assert.Greater(t, insight.Confidence, 0.9)
	assert.Greater(t, insight.SignificanceScore, 0.0)
	assert.Contains(t, insight.Title, "increased")
}

func TestDetectTrend_Decreasing(t *testing.T) {
	cfg := testConfig()
	series := dailySeries("error_rate", monday, linspace(80, 40, 14))

	insight := DetectTrend(series, cfg)

	require.NotNil(t, insight)
	evidence := insight.Evidence.(models.TrendEvidence)
	assert.Equal(t, models.TrendDecreasing, evidence.Direction)
	assert.Negative(t, evidence.PercentChange)
	assert.Contains(t, insight.Title, "decreased")
}

func TestDetectTrend_NegativeLevelRisingSeries(t *testing.T) {
	cfg := testConfig()
	series := dailySeries("net_margin", monday, linspace(-100, -50, 15))

	insight := DetectTrend(series, cfg)

	require.NotNil(t, insight)
	evidence := insight.Evidence.(models.TrendEvidence)
	assert.Equal(t, models.TrendIncreasing, evidence.Direction)
	assert.InDelta(t, 50.0, evidence.PercentChange, 1.0)
	assert.Positive(t, evidence.Slope)
	assert.Contains(t, insight.Title, "increased")
}

func TestDetectTrend_TooFewSamples(t *testing.T) {
	series := dailySeries("m", monday, []float64{1, 2})
	assert.Nil(t, DetectTrend(series, testConfig()))
}

func TestDetectTrend_FlatSeries(t *testing.T) {
	series := dailySeries("m", monday, []float64{50, 50, 50, 50, 50, 50, 50})
	assert.Nil(t, DetectTrend(series, testConfig()))
}

func TestDetectTrend_BelowChangeThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Trend.MinChangePct = 5.0

	// ~2% drift over the window stays under the threshold.
	series := dailySeries("m", monday, linspace(100, 102, 14))
	assert.Nil(t, DetectTrend(series, cfg))
}

func TestDetectTrend_WeeklyCycle(t *testing.T) {
	cfg := testConfig()
	cfg.Trend.WindowDays = 28

	// Weekend peaks over a mild drift: the day-of-week pattern explains far
	// more variance than the linear fit.
	values := make([]float64, 28)
	for i := range values {
		day := (int(monday.Weekday()) + i) % 7
		base := 10.0
		if day == 0 || day == 6 {
			base = 50.0
		}
		values[i] = base + 0.5*float64(i)
	}
	series := dailySeries("site_visits", monday, values)

	insight := DetectTrend(series, cfg)

	require.NotNil(t, insight)
	evidence := insight.Evidence.(models.TrendEvidence)
	assert.Equal(t, models.TrendCyclical, evidence.Direction)
	assert.Equal(t, weeklyPeriodDays, evidence.PeriodDays)
	assert.Contains(t, insight.Title, "weekly cycle")
}

func TestDetectTrend_ZeroIntercept(t *testing.T) {
	// Percent change is undefined when the fitted start level is zero.
	series := dailySeries("m", monday, linspace(0, 10, 11))
	series.Samples[0].Value = 0
	assert.Nil(t, DetectTrend(series, testConfig()))
}

func TestFitPeriodic_RejectsShortSpan(t *testing.T) {
	series := dailySeries("m", monday, linspace(1, 10, 10))
	_, ok := fitPeriodic(series.Samples)
	assert.False(t, ok)
}

func TestTrendWindow_AnchorsAtLastSample(t *testing.T) {
	series := dailySeries("m", monday, linspace(0, 29, 30))
	window := trendWindow(series, 7)

	require.GreaterOrEqual(t, window.Len(), 7)
	_, end := window.Span()
	assert.Equal(t, series.Samples[series.Len()-1].Timestamp, end)
}
