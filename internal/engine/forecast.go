package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
)

const (
	forecastMethodLinear   = "linear"
	forecastMethodSeasonal = "seasonal"

	// intervalZ is the 95% normal interval multiplier.
	intervalZ = 1.96
)

// Forecast projects a short-horizon continuation of a series, one point per
// future day with a 95% interval. A strong weekly cycle switches the model
// from linear extrapolation to repeating the fitted day-of-week pattern.
// Confidence degrades linearly with horizon length; nil is returned when it
// falls below trend.min_confidence. This is a deliberately simple,
// explainable baseline.
func Forecast(series *models.Series, horizonDays int, cfg config.InsightsConfig) *models.Insight {
	if horizonDays <= 0 {
		return nil
	}

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

	method := forecastMethodLinear
	modelFit := fit.RSquared
	periodic, hasPeriodic := fitPeriodic(window.Samples)
	if hasPeriodic && periodic.Explained > fit.RSquared {
		method = forecastMethodSeasonal
		modelFit = periodic.Explained
	}

	// Confidence shrinks as the horizon stretches past what the window can
	// support.
	horizonPenalty := 1 - 0.5*float64(horizonDays)/float64(cfg.Trend.WindowDays)
	if horizonPenalty < 0 {
		horizonPenalty = 0
	}
	confidence := models.ClampConfidence(modelFit * horizonPenalty)
	if confidence < cfg.Trend.MinConfidence {
		return nil
	}

	residStd := residualStdDev(xs, ys, fit)

	points := make([]models.ForecastPoint, horizonDays)
	for day := 1; day <= horizonDays; day++ {
		ts := end.Add(time.Duration(day) * 24 * time.Hour)

		var value float64
		if method == forecastMethodSeasonal {
			value = seasonalValue(ts, window, periodic)
		} else {
			value = fit.Intercept + fit.Slope*(spanSeconds+float64(day)*86400)
		}

		spread := intervalZ * residStd * math.Sqrt(float64(day))
		points[day-1] = models.ForecastPoint{
			Timestamp: ts,
			Value:     value,
			Lower:     value - spread,
			Upper:     value + spread,
		}
	}

	evidence := models.ForecastEvidence{
		HorizonDays: horizonDays,
		Method:      method,
		RSquared:    fit.RSquared,
		Points:      points,
	}

	lastValue := ys[len(ys)-1]
	significance := 0.0
	if lastValue != 0 {
		significance = math.Abs((points[len(points)-1].Value-lastValue)/lastValue) * 100 * confidence
	}

	insight := models.NewInsight(
		models.InsightTypeForecast,
		forecastTitle(series.MetricID, horizonDays, lastValue, points[len(points)-1].Value),
		[]string{series.MetricID},
		significance,
		confidence,
		evidence,
	)
	insight.WindowStart = start
	insight.WindowEnd = end
	insight.Recommendations = forecastRecommendations(series.MetricID, lastValue, points[len(points)-1].Value, horizonDays)
	return insight
}

// seasonalValue repeats the day-of-week pattern forward, re-centered on the
// recent smoothed level of the series.
func seasonalValue(ts time.Time, window *models.Series, periodic periodicFit) float64 {
	day := int(ts.Weekday())
	base := periodic.BinMeans[day]
	if !periodic.Populated[day] {
		base = overallBinMean(periodic)
	}
	return base + recentLevelShift(window, periodic)
}

func overallBinMean(periodic periodicFit) float64 {
	sum, count := 0.0, 0
	for day := 0; day < 7; day++ {
		if periodic.Populated[day] {
			sum += periodic.BinMeans[day]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// recentLevelShift measures how far the series' smoothed recent level sits
// from its window-wide mean, so the repeated pattern tracks level drift.
func recentLevelShift(window *models.Series, periodic periodicFit) float64 {
	values := window.Values()
	if len(values) < weeklyPeriodDays {
		return 0
	}

	sma := trend.NewSmaWithPeriod[float64](weeklyPeriodDays)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	if len(smoothed) == 0 {
		return 0
	}

	return smoothed[len(smoothed)-1] - mean(values)
}

func residualStdDev(xs, ys []float64, fit linearFit) float64 {
	if len(xs) == 0 {
		return 0
	}
	var ss float64
	for i := range xs {
		r := ys[i] - (fit.Intercept + fit.Slope*xs[i])
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func forecastTitle(metricID string, horizonDays int, lastValue, projected float64) string {
	direction := "hold steady"
	if lastValue != 0 {
		change := (projected - lastValue) / math.Abs(lastValue) * 100
		if change > 1 {
			direction = fmt.Sprintf("rise %.1f%%", change)
		} else if change < -1 {
			direction = fmt.Sprintf("fall %.1f%%", -change)
		}
	}
	return fmt.Sprintf("%s projected to %s over the next %d days", metricID, direction, horizonDays)
}
