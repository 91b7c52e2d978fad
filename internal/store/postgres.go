package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/datapulse/insight-engine/internal/models"
)

// PgxQuerier is the subset of pgxpool.Pool the store needs; tests swap in
// a pgxmock implementation.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSeriesStore reads metric samples from the metrics catalog and the
// metric_samples table. Sample values are stored as NUMERIC and scanned
// through decimal before conversion.
type PostgresSeriesStore struct {
	db     PgxQuerier
	logger *logrus.Logger
}

// NewPostgresSeriesStore creates a Postgres-backed series store.
func NewPostgresSeriesStore(db PgxQuerier, logger *logrus.Logger) *PostgresSeriesStore {
	return &PostgresSeriesStore{db: db, logger: logger}
}

// GetSeries returns the samples of a metric in [start, end], sorted by
// timestamp. Unknown metric ids yield SeriesUnavailableError; an expired
// context deadline yields SeriesFetchTimeoutError.
func (s *PostgresSeriesStore) GetSeries(ctx context.Context, metricID string, start, end time.Time) (*models.Series, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM metrics WHERE id = $1)`, metricID).Scan(&exists)
	if err != nil {
		return nil, s.wrapFetchError(ctx, metricID, fmt.Errorf("failed to look up metric %q: %w", metricID, err))
	}
	if !exists {
		return nil, &SeriesUnavailableError{MetricID: metricID}
	}

	rows, err := s.db.Query(ctx,
		`SELECT ts, value FROM metric_samples WHERE metric_id = $1 AND ts BETWEEN $2 AND $3 ORDER BY ts`,
		metricID, start, end)
	if err != nil {
		return nil, s.wrapFetchError(ctx, metricID, fmt.Errorf("failed to fetch samples for metric %q: %w", metricID, err))
	}
	defer rows.Close()

	series := &models.Series{MetricID: metricID}
	for rows.Next() {
		var ts time.Time
		var value decimal.Decimal
		if scanErr := rows.Scan(&ts, &value); scanErr != nil {
			return nil, fmt.Errorf("failed to scan sample for metric %q: %w", metricID, scanErr)
		}
		v, _ := value.Float64()
		series.Samples = append(series.Samples, models.Sample{Timestamp: ts, Value: v})
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, s.wrapFetchError(ctx, metricID, fmt.Errorf("error iterating samples for metric %q: %w", metricID, rowsErr))
	}

	// Rows come back ordered; Normalize still applies last-wins to any
	// duplicate timestamps.
	series.Normalize()

	s.logger.WithFields(logrus.Fields{
		"metric_id": metricID,
		"samples":   series.Len(),
	}).Debug("Fetched series from Postgres")

	return series, nil
}

func (s *PostgresSeriesStore) wrapFetchError(ctx context.Context, metricID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &SeriesFetchTimeoutError{MetricID: metricID}
	}
	return err
}
