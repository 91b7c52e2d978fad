package engine

import (
	"time"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
)

// dailySeries builds a series with one sample per day, starting at start.
func dailySeries(metricID string, start time.Time, values []float64) *models.Series {
	samples := make([]models.Sample, len(values))
	for i, v := range values {
		samples[i] = models.Sample{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Value:     v,
		}
	}
	return &models.Series{MetricID: metricID, Samples: samples}
}

// linspace returns count values evenly spaced from first to last inclusive.
func linspace(first, last float64, count int) []float64 {
	values := make([]float64, count)
	if count == 1 {
		values[0] = first
		return values
	}
	step := (last - first) / float64(count-1)
	for i := range values {
		values[i] = first + step*float64(i)
	}
	return values
}

func testConfig() config.InsightsConfig {
	return config.DefaultInsights()
}

// monday is a fixed anchor so weekday binning is stable across test runs.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
