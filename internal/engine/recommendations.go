package engine

import (
	"fmt"
	"math"

	"github.com/datapulse/insight-engine/internal/models"
)

// Recommendation text is deliberately structured and terse: downstream
// presentation owns prose, the engine only emits ordered action strings.

func trendRecommendations(metricID string, direction models.TrendDirection, pctChange float64) []string {
	switch direction {
	case models.TrendCyclical:
		return []string{
			fmt.Sprintf("Schedule capacity and staffing around the weekly cycle of %s", metricID),
			fmt.Sprintf("Compare %s week-over-week rather than day-over-day", metricID),
		}
	case models.TrendDecreasing:
		return []string{
			fmt.Sprintf("Investigate drivers behind the %.1f%% decline in %s", math.Abs(pctChange), metricID),
			fmt.Sprintf("Set an alert on further drops in %s", metricID),
		}
	default:
		return []string{
			fmt.Sprintf("Confirm the %.1f%% growth in %s is sustainable", pctChange, metricID),
			fmt.Sprintf("Review capacity headroom for %s", metricID),
		}
	}
}

func anomalyRecommendations(metricID string, peakZ float64, pointCount int) []string {
	recs := []string{
		fmt.Sprintf("Check for data pipeline or collection issues affecting %s", metricID),
		fmt.Sprintf("Correlate the deviation in %s with deployments or external events", metricID),
	}
	if pointCount > 1 {
		recs = append(recs, fmt.Sprintf("Treat the sustained deviation in %s as a shift, not a blip", metricID))
	}
	return recs
}

func correlationRecommendations(result *PairResult) []string {
	recs := []string{
		fmt.Sprintf("Validate whether the relationship between %s and %s is causal before acting on it", result.MetricA, result.MetricB),
	}
	if result.LagDays != 0 {
		recs = append(recs, fmt.Sprintf("Use %s as a leading indicator for %s (%d-day lag)", result.MetricA, result.MetricB, result.LagDays))
	} else {
		recs = append(recs, fmt.Sprintf("Consider tracking %s and %s on the same dashboard", result.MetricA, result.MetricB))
	}
	return recs
}

func forecastRecommendations(metricID string, lastValue, projected float64, horizonDays int) []string {
	if lastValue != 0 && (projected-lastValue)/math.Abs(lastValue) < -0.05 {
		return []string{
			fmt.Sprintf("Plan mitigation for the projected decline in %s within %d days", metricID, horizonDays),
			fmt.Sprintf("Re-run the projection for %s as new data arrives", metricID),
		}
	}
	return []string{
		fmt.Sprintf("Use the %d-day projection of %s for near-term planning only", horizonDays, metricID),
		fmt.Sprintf("Re-run the projection for %s as new data arrives", metricID),
	}
}
