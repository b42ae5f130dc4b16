package bootstrap

import (
	"context"
	"time"

	"trafficslice/config"
	"trafficslice/core"
	"trafficslice/service"

	"go.uber.org/zap"
)

// Services holds the query services the API and CLI call
type Services struct {
	Alerts    *service.AlertQueryService
	Analytics service.AnalyticsReader
	Lookups   *service.LookupService
}

// InitCache connects the Redis result cache. It returns nil when the cache
// is disabled or unreachable; analytics then always hit the store.
func InitCache(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) *core.RedisCache {
	if !cfg.Cache.Redis.Enabled {
		sugar.Info("Redis result cache disabled by configuration")
		return nil
	}

	redisCfg := cfg.Cache.Redis
	cache := core.NewRedisCache(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.PoolSize, sugar)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		sugar.Warnw("Redis unreachable, continuing without result cache",
			"addr", redisCfg.Addr,
			"error", err)
		_ = cache.Close()
		return nil
	}

	sugar.Infow("Redis result cache connected", "addr", redisCfg.Addr, "ttl", cfg.Cache.TTL)
	return cache
}

// InitServices builds the query services over store. cache may be nil.
func InitServices(store service.QueryStore, cache *core.RedisCache, cfg *config.Config, sugar *zap.SugaredLogger) *Services {
	var analytics service.AnalyticsReader = service.NewAnalyticsQueryService(store, sugar)
	if cache != nil {
		analytics = service.NewCachedAnalytics(analytics, cache, cfg.Cache.TTL, sugar)
	}

	return &Services{
		Alerts:    service.NewAlertQueryService(store, sugar, cfg.Query.MaxPageSize),
		Analytics: analytics,
		Lookups:   service.NewLookupService(store, sugar, cfg.Cache.LookupSize, cfg.Cache.LookupTTL),
	}
}
