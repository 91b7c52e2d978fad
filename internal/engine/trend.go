package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
)

// weeklyPeriodDays is the period length reported for cyclical series. The
// periodic decomposition bins samples by day of week.
const weeklyPeriodDays = 7

// periodicFit is the result of the day-of-week decomposition used by the
// trend detector's cyclical check and the forecaster's seasonal path.
type periodicFit struct {
	// Explained is the fraction of total variance explained by the
	// day-of-week bin means, in [0,1].
	Explained float64
	// BinMeans holds the mean observed value per weekday (time.Weekday
	// indexing); Populated marks bins with at least one sample.
	BinMeans  [7]float64
	Populated [7]bool
}

// fitPeriodic bins samples by day of week and measures how much variance
// the bin means explain. It returns ok=false when the series is too short
// to support a weekly decomposition: under two weeks of span, or fewer
// than two samples in every populated bin.
func fitPeriodic(samples []models.Sample) (periodicFit, bool) {
	if len(samples) < 2*weeklyPeriodDays {
		return periodicFit{}, false
	}
	span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	if span < 2*weeklyPeriodDays*24*time.Hour {
		return periodicFit{}, false
	}

	var sums, counts [7]float64
	for _, s := range samples {
		day := int(s.Timestamp.Weekday())
		sums[day] += s.Value
		counts[day]++
	}

	var fit periodicFit
	populatedBins := 0
	for day := 0; day < 7; day++ {
		if counts[day] == 0 {
			continue
		}
		if counts[day] < 2 {
			return periodicFit{}, false
		}
		fit.BinMeans[day] = sums[day] / counts[day]
		fit.Populated[day] = true
		populatedBins++
	}
	if populatedBins < 2 {
		return periodicFit{}, false
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	total := mean(values)

	var ssTot, ssRes float64
	for _, s := range samples {
		d := s.Value - total
		ssTot += d * d
		r := s.Value - fit.BinMeans[int(s.Timestamp.Weekday())]
		ssRes += r * r
	}
	if ssTot == 0 {
		return periodicFit{}, false
	}

	fit.Explained = 1 - ssRes/ssTot
	if fit.Explained < 0 {
		fit.Explained = 0
	}
	return fit, true
}

// trendWindow extracts the trailing trend window of a series, anchored at
// its last sample.
func trendWindow(series *models.Series, windowDays int) *models.Series {
	if series.Len() == 0 {
		return series
	}
	end := series.Samples[series.Len()-1].Timestamp
	start := end.Add(-time.Duration(windowDays) * 24 * time.Hour)
	return series.Window(start, end)
}

// DetectTrend classifies a series as increasing, decreasing or cyclical
// over the configured trend window. It returns nil when the series is flat,
// too short, or the fit's confidence falls below the configured minimum;
// absence of signal is not an error. The function is pure: it reads only
// its inputs and the immutable configuration.
func DetectTrend(series *models.Series, cfg config.InsightsConfig) *models.Insight {
	window := trendWindow(series, cfg.Trend.WindowDays)
	if window.Len() < 3 {
		return nil
	}

	start, end := window.Span()
	spanSeconds := end.Sub(start).Seconds()
	if spanSeconds <= 0 {
		return nil
	}

	xs := make([]float64, window.Len())
	ys := make([]float64, window.Len())
	for i, s := range window.Samples {
		xs[i] = s.Timestamp.Sub(start).Seconds()
		ys[i] = s.Value
	}

	fit := fitLinear(xs, ys)
	if fit.Intercept == 0 {
		// Percent change relative to a zero starting level is undefined.
		return nil
	}

	pctChange := fit.Slope * spanSeconds / fit.Intercept * 100
	if math.Abs(pctChange) < cfg.Trend.MinChangePct {
		return nil
	}

	// Direction follows the slope. A negative starting level flips the sign
	// of the slope/intercept ratio, so the reported change is re-signed to
	// agree with the slope.
	pctChange = math.Copysign(math.Abs(pctChange), fit.Slope)
	direction := models.TrendIncreasing
	if fit.Slope < 0 {
		direction = models.TrendDecreasing
	}

	confidence := fit.RSquared
	periodDays := 0
	if periodic, ok := fitPeriodic(window.Samples); ok && periodic.Explained > fit.RSquared {
		direction = models.TrendCyclical
		confidence = periodic.Explained
		periodDays = weeklyPeriodDays
	}

	confidence = models.ClampConfidence(confidence)
	if confidence < cfg.Trend.MinConfidence {
		return nil
	}

	evidence := models.TrendEvidence{
		Direction:     direction,
		PercentChange: pctChange,
		Slope:         fit.Slope * 86400, // per day
		RSquared:      fit.RSquared,
		PeriodDays:    periodDays,
	}

	insight := models.NewInsight(
		models.InsightTypeTrend,
		trendTitle(series.MetricID, direction, pctChange, cfg.Trend.WindowDays),
		[]string{series.MetricID},
		math.Abs(pctChange)*confidence,
		confidence,
		evidence,
	)
	insight.WindowStart = start
	insight.WindowEnd = end
	insight.Recommendations = trendRecommendations(series.MetricID, direction, pctChange)
	return insight
}

func trendTitle(metricID string, direction models.TrendDirection, pctChange float64, windowDays int) string {
	switch direction {
	case models.TrendCyclical:
		return fmt.Sprintf("%s follows a weekly cycle", metricID)
	case models.TrendDecreasing:
		return fmt.Sprintf("%s decreased %.1f%% over %d days", metricID, math.Abs(pctChange), windowDays)
	default:
		return fmt.Sprintf("%s increased %.1f%% over %d days", metricID, pctChange, windowDays)
	}
}
