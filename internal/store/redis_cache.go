package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/datapulse/insight-engine/internal/models"
)

// CacheStats tracks read-through cache performance.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// Snapshot returns a copy of the counters.
func (s *CacheStats) Snapshot() (hits, misses, sets int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Hits, s.Misses, s.Sets
}

// CachedSeriesStore is a read-through Redis decorator over another
// SeriesStore. Cache failures degrade to the inner store; they never fail
// a fetch.
type CachedSeriesStore struct {
	inner  SeriesStore
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
	stats  *CacheStats
	prefix string
}

// NewCachedSeriesStore wraps a series store with a Redis window cache.
func NewCachedSeriesStore(inner SeriesStore, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedSeriesStore {
	return &CachedSeriesStore{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
		stats:  &CacheStats{},
		prefix: "series_cache:",
	}
}

// Stats exposes cache counters for the health endpoint.
func (c *CachedSeriesStore) Stats() *CacheStats {
	return c.stats
}

// GetSeries serves the window from Redis when present, otherwise delegates
// to the inner store and caches the result.
func (c *CachedSeriesStore) GetSeries(ctx context.Context, metricID string, start, end time.Time) (*models.Series, error) {
	key := c.cacheKey(metricID, start, end)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var series models.Series
		if unmarshalErr := json.Unmarshal([]byte(data), &series); unmarshalErr == nil {
			c.stats.mu.Lock()
			c.stats.Hits++
			c.stats.mu.Unlock()
			return &series, nil
		}
		// Corrupt entry: fall through to the inner store and overwrite.
		c.logger.WithField("key", key).Warn("Discarding corrupt series cache entry")
	} else if err != redis.Nil {
		c.logger.WithError(err).Warn("Series cache read failed, falling back to store")
	}

	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()

	series, err := c.inner.GetSeries(ctx, metricID, start, end)
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(series); marshalErr == nil {
		if setErr := c.redis.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WithError(setErr).Warn("Series cache write failed")
		} else {
			c.stats.mu.Lock()
			c.stats.Sets++
			c.stats.mu.Unlock()
		}
	}

	return series, nil
}

func (c *CachedSeriesStore) cacheKey(metricID string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%d:%d", c.prefix, metricID, start.Unix(), end.Unix())
}
