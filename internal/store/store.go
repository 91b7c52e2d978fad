package store

import (
	"context"
	"fmt"
	"time"

	"github.com/datapulse/insight-engine/internal/models"
)

// SeriesStore supplies, for a metric id and time window, the ordered
// samples of that metric. It is the engine's only I/O boundary; callers
// bound each call with a context deadline.
type SeriesStore interface {
	GetSeries(ctx context.Context, metricID string, start, end time.Time) (*models.Series, error)
}

// SeriesUnavailableError reports that a metric id is unknown to the store.
type SeriesUnavailableError struct {
	MetricID string
}

func (e *SeriesUnavailableError) Error() string {
	return fmt.Sprintf("series unavailable for metric %q", e.MetricID)
}

// SeriesFetchTimeoutError reports that a series fetch exceeded its deadline.
type SeriesFetchTimeoutError struct {
	MetricID string
	Timeout  time.Duration
}

func (e *SeriesFetchTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("series fetch for metric %q timed out after %s", e.MetricID, e.Timeout)
	}
	return fmt.Sprintf("series fetch for metric %q timed out", e.MetricID)
}
