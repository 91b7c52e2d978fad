package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
)

// PairResult is the raw outcome of correlating one metric pair, before
// strength filtering and FDR correction.
type PairResult struct {
	MetricA     string
	MetricB     string
	Coefficient float64
	LagDays     int
	Overlap     int
	PValue      float64
}

// alignSeries joins two series on nearest timestamps within a tolerance of
// half the coarser sampling interval, dropping unmatched points.
func alignSeries(a, b *models.Series) (xs, ys []float64) {
	if a.Len() == 0 || b.Len() == 0 {
		return nil, nil
	}

	tsA := make([]time.Time, a.Len())
	for i, s := range a.Samples {
		tsA[i] = s.Timestamp
	}
	tsB := make([]time.Time, b.Len())
	for i, s := range b.Samples {
		tsB[i] = s.Timestamp
	}

	tolerance := medianInterval(tsA)
	if coarser := medianInterval(tsB); coarser > tolerance {
		tolerance = coarser
	}
	tolerance /= 2

	j := 0
	matched := -1
	for _, sa := range a.Samples {
		for j+1 < b.Len() && absDuration(b.Samples[j+1].Timestamp.Sub(sa.Timestamp)) <= absDuration(b.Samples[j].Timestamp.Sub(sa.Timestamp)) {
			j++
		}
		// One-to-one join: a coarse-side sample pairs with at most one
		// dense-side sample, so overlap never exceeds either length.
		if j == matched {
			continue
		}
		if absDuration(b.Samples[j].Timestamp.Sub(sa.Timestamp)) <= tolerance {
			xs = append(xs, sa.Value)
			ys = append(ys, b.Samples[j].Value)
			matched = j
		}
	}
	return xs, ys
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// shiftSeries returns a copy of the series with every timestamp moved
// forward by the given number of days. The samples themselves are shared.
func shiftSeries(s *models.Series, days int) *models.Series {
	if days == 0 {
		return s
	}
	offset := time.Duration(days) * 24 * time.Hour
	shifted := &models.Series{MetricID: s.MetricID, Samples: make([]models.Sample, s.Len())}
	for i, sample := range s.Samples {
		shifted.Samples[i] = models.Sample{Timestamp: sample.Timestamp.Add(offset), Value: sample.Value}
	}
	return shifted
}

// CorrelatePair computes the Pearson correlation of two series after
// alignment. When lag analysis is enabled, lags out to max_lag_days in both
// directions are searched and the lag with the largest absolute coefficient
// wins; ties prefer the smaller absolute lag for determinism. Returns nil
// when the aligned overlap is below the minimum point floor.
func CorrelatePair(a, b *models.Series, cfg config.InsightsConfig) *PairResult {
	floor := cfg.Anomaly.MinPoints

	best := correlateAtLag(a, b, 0, floor)
	if cfg.Correlation.LagAnalysis && cfg.Correlation.MaxLagDays > 0 {
		for lag := 1; lag <= cfg.Correlation.MaxLagDays; lag++ {
			for _, candidate := range []int{lag, -lag} {
				result := correlateAtLag(a, b, candidate, floor)
				if result == nil {
					continue
				}
				if best == nil || math.Abs(result.Coefficient) > math.Abs(best.Coefficient) {
					best = result
				}
			}
		}
	}

	if best == nil {
		return nil
	}
	best.MetricA = a.MetricID
	best.MetricB = b.MetricID
	return best
}

func correlateAtLag(a, b *models.Series, lagDays, floor int) *PairResult {
	xs, ys := alignSeries(a, shiftSeries(b, lagDays))
	if len(xs) < floor {
		return nil
	}
	r := pearson(xs, ys)
	return &PairResult{
		Coefficient: r,
		LagDays:     lagDays,
		Overlap:     len(xs),
		PValue:      correlationPValue(r, len(xs)),
	}
}

// EvaluatePairs correlates every unordered pair among the supplied series
// and returns the insights that survive the strength threshold and, when
// enabled, Benjamini-Hochberg FDR correction across the whole batch. Pair
// order is deterministic (lexical by metric id).
func EvaluatePairs(series []*models.Series, cfg config.InsightsConfig) []*models.Insight {
	ordered := make([]*models.Series, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].MetricID < ordered[j].MetricID })

	var results []*PairResult
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if result := CorrelatePair(ordered[i], ordered[j], cfg); result != nil {
				results = append(results, result)
			}
		}
	}

	keep := make([]bool, len(results))
	if cfg.Correlation.FDRCorrection {
		pvalues := make([]float64, len(results))
		for i, r := range results {
			pvalues[i] = r.PValue
		}
		keep = benjaminiHochberg(pvalues, cfg.Correlation.FDRAlpha)
	} else {
		for i := range keep {
			keep[i] = true
		}
	}

	var insights []*models.Insight
	for i, result := range results {
		if !keep[i] {
			continue
		}
		if math.Abs(result.Coefficient) < cfg.Correlation.MinStrength {
			continue
		}
		insights = append(insights, correlationInsight(result, cfg))
	}
	return insights
}

func correlationInsight(result *PairResult, cfg config.InsightsConfig) *models.Insight {
	evidence := models.CorrelationEvidence{
		Coefficient: result.Coefficient,
		LagDays:     result.LagDays,
		Overlap:     result.Overlap,
		PValue:      result.PValue,
	}

	insight := models.NewInsight(
		models.InsightTypeCorrelation,
		correlationTitle(result),
		[]string{result.MetricA, result.MetricB},
		math.Abs(result.Coefficient),
		overlapConfidence(result.Overlap, cfg.Anomaly.MinPoints),
		evidence,
	)
	insight.Recommendations = correlationRecommendations(result)
	return insight
}

func correlationTitle(result *PairResult) string {
	relation := "move together"
	if result.Coefficient < 0 {
		relation = "move in opposite directions"
	}
	if result.LagDays != 0 {
		return fmt.Sprintf("%s and %s %s with a %d-day lag (r=%.2f)",
			result.MetricA, result.MetricB, relation, result.LagDays, result.Coefficient)
	}
	return fmt.Sprintf("%s and %s %s (r=%.2f)", result.MetricA, result.MetricB, relation, result.Coefficient)
}
