package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"trafficslice/core"

	"go.uber.org/zap"
)

// AnalyticsReader is satisfied by AnalyticsQueryService and CachedAnalytics
type AnalyticsReader interface {
	GetAlertAnalytics(ctx context.Context, f *core.AnalyticsFilter) ([]core.AnalyticsDataPoint, error)
}

// ResultCache is the subset of core.RedisCache used for analytics results
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedAnalytics serves repeated analytics requests from a result cache.
// Cache failures degrade to a direct query; they never fail the request.
type CachedAnalytics struct {
	next   AnalyticsReader
	cache  ResultCache
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewCachedAnalytics wraps next. A nil cache disables caching.
func NewCachedAnalytics(next AnalyticsReader, cache ResultCache, ttl time.Duration, logger *zap.SugaredLogger) *CachedAnalytics {
	if next == nil {
		panic("analytics reader is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &CachedAnalytics{next: next, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// isTodayFallback reports whether points has the shape of the synthesized
// whole-period point. Its time_key names the current day, so it must not
// outlive that day in the cache.
func (c *CachedAnalytics) isTodayFallback(f *core.AnalyticsFilter, points []core.AnalyticsDataPoint) bool {
	if !IsTimeDimensionOnly(f) || len(points) != 1 || points[0].DimensionKey != nil {
		return false
	}
	return points[0].TimeKey == c.now().Format(core.TimeGroupByDay.Layout())
}

// analyticsCacheKey digests the canonical JSON form of f
func analyticsCacheKey(f *core.AnalyticsFilter) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return core.GetAnalyticsCacheKey(hex.EncodeToString(sum[:])), nil
}

// GetAlertAnalytics implements AnalyticsReader
func (c *CachedAnalytics) GetAlertAnalytics(ctx context.Context, f *core.AnalyticsFilter) ([]core.AnalyticsDataPoint, error) {
	if c.cache == nil || f == nil || c.ttl <= 0 {
		return c.next.GetAlertAnalytics(ctx, f)
	}

	key, err := analyticsCacheKey(f)
	if err != nil {
		return c.next.GetAlertAnalytics(ctx, f)
	}

	var cached []core.AnalyticsDataPoint
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warnw("Analytics cache read failed", "key", key, "error", err)
	} else if found {
		return cached, nil
	}

	points, err := c.next.GetAlertAnalytics(ctx, f)
	if err != nil {
		return nil, err
	}

	if c.isTodayFallback(f, points) {
		return points, nil
	}
	if err := c.cache.Set(ctx, key, points, c.ttl); err != nil {
		c.logger.Warnw("Analytics cache write failed", "key", key, "error", err)
	}
	return points, nil
}
