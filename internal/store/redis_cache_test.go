package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/insight-engine/internal/models"
)

// countingStore records how many times each metric was fetched.
type countingStore struct {
	calls  map[string]int
	result *models.Series
	err    error
}

func (c *countingStore) GetSeries(ctx context.Context, metricID string, start, end time.Time) (*models.Series, error) {
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[metricID]++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func newCachedStore(t *testing.T, inner SeriesStore) (*CachedSeriesStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewCachedSeriesStore(inner, client, time.Minute, logger), mr
}

func testSeries() *models.Series {
	return &models.Series{
		MetricID: "revenue",
		Samples: []models.Sample{
			{Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Value: 100},
			{Timestamp: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Value: 110},
		},
	}
}

func TestCachedGetSeries_MissThenHit(t *testing.T) {
	inner := &countingStore{result: testSeries()}
	cached, _ := newCachedStore(t, inner)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	first, err := cached.GetSeries(context.Background(), "revenue", start, end)
	require.NoError(t, err)
	second, err := cached.GetSeries(context.Background(), "revenue", start, end)
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Equal(t, 1, inner.calls["revenue"])

	hits, misses, sets := cached.Stats().Snapshot()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), sets)
}

func TestCachedGetSeries_DistinctWindowsMissSeparately(t *testing.T) {
	inner := &countingStore{result: testSeries()}
	cached, _ := newCachedStore(t, inner)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := cached.GetSeries(context.Background(), "revenue", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	_, err = cached.GetSeries(context.Background(), "revenue", start, start.AddDate(0, 0, 30))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls["revenue"])
}

func TestCachedGetSeries_CorruptEntryFallsThrough(t *testing.T) {
	inner := &countingStore{result: testSeries()}
	cached, mr := newCachedStore(t, inner)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	require.NoError(t, mr.Set(cached.cacheKey("revenue", start, end), "{not json"))

	series, err := cached.GetSeries(context.Background(), "revenue", start, end)
	require.NoError(t, err)
	assert.Equal(t, "revenue", series.MetricID)
	assert.Equal(t, 1, inner.calls["revenue"])
}

func TestCachedGetSeries_RedisDownDegradesToInner(t *testing.T) {
	inner := &countingStore{result: testSeries()}
	cached, mr := newCachedStore(t, inner)
	mr.Close()

	series, err := cached.GetSeries(context.Background(), "revenue", time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "revenue", series.MetricID)
}

func TestCachedGetSeries_InnerErrorNotCached(t *testing.T) {
	inner := &countingStore{err: errors.New("boom")}
	cached, _ := newCachedStore(t, inner)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	_, err := cached.GetSeries(context.Background(), "revenue", start, end)
	require.Error(t, err)
	_, err = cached.GetSeries(context.Background(), "revenue", start, end)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls["revenue"])
}
