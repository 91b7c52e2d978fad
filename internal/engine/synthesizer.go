package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/datapulse/insight-engine/internal/config"
	"github.com/datapulse/insight-engine/internal/models"
	"github.com/datapulse/insight-engine/internal/store"
)

// MetricFailure records a per-metric fetch failure inside an otherwise
// successful batch run.
type MetricFailure struct {
	MetricID string `json:"metric_id"`
	Error    string `json:"error"`
}

// RunResult is the output of one synthesis run: the ranked insights plus
// the metrics that could not be fetched. A single metric's failure never
// aborts the batch.
type RunResult struct {
	RunID       string           `json:"run_id"`
	PeriodDays  int              `json:"period_days"`
	Insights    []models.Insight `json:"insights"`
	Failures    []MetricFailure  `json:"failures"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Engine coordinates the detectors over a metric set. It owns only the
// immutable configuration, the series store and a worker bound; every
// detector invocation is a pure function of its own inputs, so invocations
// run concurrently without locking.
type Engine struct {
	cfg        config.InsightsConfig
	store      store.SeriesStore
	logger     *logrus.Logger
	maxWorkers int
}

// NewEngine creates an insight discovery engine. The configuration must
// already be validated; NewEngine rejects invalid configurations so no
// detection ever runs against one.
func NewEngine(cfg config.InsightsConfig, seriesStore store.SeriesStore, logger *logrus.Logger) (*Engine, error) {
	if err := config.ValidateInsights(cfg); err != nil {
		return nil, err
	}

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Engine{
		cfg:        cfg,
		store:      seriesStore,
		logger:     logger,
		maxWorkers: workers,
	}, nil
}

// Synthesize fetches each requested metric, runs every detector over it
// (and the correlation analyzer over each pair), then deduplicates,
// normalizes and ranks the findings. Cancellation is checked between
// detector invocations; on cancellation partial results are discarded.
func (e *Engine) Synthesize(ctx context.Context, metricIDs []string, periodDays int) (*RunResult, error) {
	if len(metricIDs) == 0 {
		return nil, errors.New("no metric ids supplied")
	}
	if periodDays <= 0 {
		return nil, fmt.Errorf("period_days must be positive, got %d", periodDays)
	}

	runID := uuid.New().String()
	end := time.Now().UTC()
	start := end.Add(-time.Duration(periodDays) * 24 * time.Hour)

	e.logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"metrics":     len(metricIDs),
		"period_days": periodDays,
	}).Info("Starting insight synthesis run")

	seriesList, failures := e.fetchAll(ctx, metricIDs, start, end)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	insights, err := e.runDetectors(ctx, seriesList)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	insights = append(insights, EvaluatePairs(seriesList, e.cfg)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	insights = dedupeInsights(insights)
	ranked := rankInsights(insights)

	e.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"insights": len(ranked),
		"failures": len(failures),
	}).Info("Insight synthesis run completed")

	return &RunResult{
		RunID:       runID,
		PeriodDays:  periodDays,
		Insights:    ranked,
		Failures:    failures,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// fetchAll retrieves every requested series with a per-call deadline.
// Fetch failures are recorded and skipped, never fatal to the batch.
func (e *Engine) fetchAll(ctx context.Context, metricIDs []string, start, end time.Time) ([]*models.Series, []MetricFailure) {
	timeout := e.cfg.FetchTimeoutDuration()

	var seriesList []*models.Series
	var failures []MetricFailure

	for _, metricID := range metricIDs {
		if ctx.Err() != nil {
			return seriesList, failures
		}

		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		series, err := e.store.GetSeries(fetchCtx, metricID, start, end)
		cancel()

		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"metric_id": metricID,
			}).WithError(err).Warn("Series fetch failed, skipping metric")
			failures = append(failures, MetricFailure{MetricID: metricID, Error: err.Error()})
			continue
		}

		series.Normalize()
		seriesList = append(seriesList, series)
	}

	return seriesList, failures
}

// runDetectors dispatches the per-metric detectors across a bounded worker
// pool. Results are gathered in deterministic submission order; the final
// ranking restores the documented ordering regardless of completion order.
func (e *Engine) runDetectors(ctx context.Context, seriesList []*models.Series) ([]*models.Insight, error) {
	type job func() []*models.Insight

	var jobs []job
	for _, series := range seriesList {
		s := series
		jobs = append(jobs,
			func() []*models.Insight {
				if insight := DetectTrend(s, e.cfg); insight != nil {
					return []*models.Insight{insight}
				}
				return nil
			},
			func() []*models.Insight {
				return DetectAnomalies(s, e.cfg)
			},
			func() []*models.Insight {
				if insight := Forecast(s, e.cfg.Forecast.HorizonDays, e.cfg); insight != nil {
					return []*models.Insight{insight}
				}
				return nil
			},
		)
	}

	results := make([][]*models.Insight, len(jobs))
	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup

	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, run job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = run()
		}(i, j)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Partial results are discarded, not returned.
		return nil, err
	}

	var insights []*models.Insight
	for _, batch := range results {
		insights = append(insights, batch...)
	}
	return insights, nil
}

// dedupeInsights merges insights of the same type over the same metric set
// with overlapping windows, keeping the higher-confidence one.
func dedupeInsights(insights []*models.Insight) []*models.Insight {
	var deduped []*models.Insight

	for _, candidate := range insights {
		merged := false
		for i, kept := range deduped {
			if sameSubject(candidate, kept) && windowsOverlap(candidate, kept) {
				if betterOf(candidate, kept) {
					deduped[i] = candidate
				}
				merged = true
				break
			}
		}
		if !merged {
			deduped = append(deduped, candidate)
		}
	}

	return deduped
}

func sameSubject(a, b *models.Insight) bool {
	if a.Type != b.Type || len(a.Metrics) != len(b.Metrics) {
		return false
	}
	return metricKey(a.Metrics) == metricKey(b.Metrics)
}

func metricKey(metrics []string) string {
	sorted := make([]string, len(metrics))
	copy(sorted, metrics)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func windowsOverlap(a, b *models.Insight) bool {
	if a.WindowStart.IsZero() || b.WindowStart.IsZero() {
		return true
	}
	return !a.WindowEnd.Before(b.WindowStart) && !b.WindowEnd.Before(a.WindowStart)
}

// betterOf prefers higher confidence, then higher significance, for a
// deterministic merge.
func betterOf(candidate, kept *models.Insight) bool {
	if candidate.Confidence != kept.Confidence {
		return candidate.Confidence > kept.Confidence
	}
	return candidate.SignificanceScore > kept.SignificanceScore
}

// rankInsights normalizes significance per insight type with run-local
// min-max scaling, then orders descending by normalized significance times
// confidence. Ties break by type precedence, then metric ids, then title.
// The raw significance stored on each insight is never mutated.
func rankInsights(insights []*models.Insight) []models.Insight {
	minByType := map[models.InsightType]float64{}
	maxByType := map[models.InsightType]float64{}
	for _, insight := range insights {
		score := insight.SignificanceScore
		if current, ok := minByType[insight.Type]; !ok || score < current {
			minByType[insight.Type] = score
		}
		if current, ok := maxByType[insight.Type]; !ok || score > current {
			maxByType[insight.Type] = score
		}
	}

	normalized := func(insight *models.Insight) float64 {
		lo := minByType[insight.Type]
		hi := maxByType[insight.Type]
		if hi == lo {
			// A type with one distinct score ranks on confidence alone.
			return 1
		}
		return (insight.SignificanceScore - lo) / (hi - lo)
	}

	ordered := make([]models.Insight, len(insights))
	for i, insight := range insights {
		ordered[i] = *insight
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		scoreI := normalized(&ordered[i]) * ordered[i].Confidence
		scoreJ := normalized(&ordered[j]) * ordered[j].Confidence
		if scoreI != scoreJ {
			return scoreI > scoreJ
		}
		if pi, pj := models.TypePrecedence(ordered[i].Type), models.TypePrecedence(ordered[j].Type); pi != pj {
			return pi < pj
		}
		if ki, kj := metricKey(ordered[i].Metrics), metricKey(ordered[j].Metrics); ki != kj {
			return ki < kj
		}
		return ordered[i].Title < ordered[j].Title
	})

	return ordered
}
