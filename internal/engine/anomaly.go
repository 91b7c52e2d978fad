package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
)

// anomalousPoint carries a flagged sample and the baseline it was judged
// against.
type anomalousPoint struct {
	index          int
	zScore         float64
	baselineMean   float64
	baselineStdDev float64
}

// DetectAnomalies flags samples whose value deviates from the rolling
// baseline by more than the configured standard-deviation multiple.
// Contiguous anomalous samples are merged into a single insight spanning
// the run. Series with too few baseline points, or with a degenerate
// (zero-variance) baseline, produce no insights and no error.
func DetectAnomalies(series *models.Series, cfg config.InsightsConfig) []*models.Insight {
	samples := series.Samples
	if len(samples) < cfg.Anomaly.MinPoints {
		return nil
	}

	baselineSpan := time.Duration(cfg.Anomaly.BaselineDays) * 24 * time.Hour

	var flagged []anomalousPoint
	lo := 0
	for i := range samples {
		cutoff := samples[i].Timestamp.Add(-baselineSpan)
		for lo < i && samples[lo].Timestamp.Before(cutoff) {
			lo++
		}

		// The baseline is the window immediately preceding the candidate,
		// excluding the candidate itself.
		baseline := samples[lo:i]
		if len(baseline) < cfg.Anomaly.MinPoints {
			continue
		}

		values := make([]float64, len(baseline))
		for j, s := range baseline {
			values[j] = s.Value
		}
		m := mean(values)
		sd := sampleStdDev(values)
		if sd == 0 {
			// Degenerate baseline: no anomaly detectable for this point.
			continue
		}

		z := (samples[i].Value - m) / sd
		if math.Abs(z) > cfg.Anomaly.ZThreshold {
			flagged = append(flagged, anomalousPoint{
				index:          i,
				zScore:         z,
				baselineMean:   m,
				baselineStdDev: sd,
			})
		}
	}

	return mergeAnomalousRuns(series, flagged)
}

// mergeAnomalousRuns collapses index-contiguous flagged points into one
// insight per run.
func mergeAnomalousRuns(series *models.Series, flagged []anomalousPoint) []*models.Insight {
	var insights []*models.Insight

	for start := 0; start < len(flagged); {
		end := start
		for end+1 < len(flagged) && flagged[end+1].index == flagged[end].index+1 {
			end++
		}

		run := flagged[start : end+1]
		peak := run[0]
		for _, p := range run[1:] {
			if math.Abs(p.zScore) > math.Abs(peak.zScore) {
				peak = p
			}
		}

		first := series.Samples[run[0].index]
		last := series.Samples[run[len(run)-1].index]
		peakSample := series.Samples[peak.index]

		evidence := models.AnomalyEvidence{
			RunStart:       first.Timestamp,
			RunEnd:         last.Timestamp,
			PointCount:     len(run),
			PeakZScore:     peak.zScore,
			PeakValue:      peakSample.Value,
			BaselineMean:   peak.baselineMean,
			BaselineStdDev: peak.baselineStdDev,
		}

		significance := math.Abs(peak.zScore)
		confidence := zScoreConfidence(peak.zScore)

		insight := models.NewInsight(
			models.InsightTypeAnomaly,
			anomalyTitle(series.MetricID, peak.zScore, len(run)),
			[]string{series.MetricID},
			significance,
			confidence,
			evidence,
		)
		insight.WindowStart = first.Timestamp
		insight.WindowEnd = last.Timestamp
		insight.Recommendations = anomalyRecommendations(series.MetricID, peak.zScore, len(run))
		insights = append(insights, insight)

		start = end + 1
	}

	return insights
}

func anomalyTitle(metricID string, peakZ float64, pointCount int) string {
	direction := "spike"
	if peakZ < 0 {
		direction = "drop"
	}
	if pointCount > 1 {
		return fmt.Sprintf("Sustained %s in %s (%d points, peak %.1fσ)", direction, metricID, pointCount, math.Abs(peakZ))
	}
	return fmt.Sprintf("Unusual %s in %s (%.1fσ from baseline)", direction, metricID, math.Abs(peakZ))
}
