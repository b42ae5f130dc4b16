package service

import (
	"context"
	"fmt"
	"time"

	"trafficslice/core"
	"trafficslice/metrics"
	"trafficslice/search"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultLookupCacheSize = 64
	DefaultLookupCacheTTL  = time.Minute

	lookupCacheName = "lookup"
)

// LookupService lists the distinct values of filterable columns and the
// raw alert count. Lists are cached for a short TTL since they back
// dropdowns that are requested on every page load.
type LookupService struct {
	store  QueryStore
	logger *zap.SugaredLogger
	cache  *expirable.LRU[string, []string]
}

// NewLookupService creates a LookupService. size or ttl <= 0 select the defaults.
func NewLookupService(store QueryStore, logger *zap.SugaredLogger, size int, ttl time.Duration) *LookupService {
	if store == nil {
		panic("store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if size <= 0 {
		size = DefaultLookupCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultLookupCacheTTL
	}
	return &LookupService{
		store:  store,
		logger: logger,
		cache:  expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

// distinct returns the sorted distinct values of column
func (s *LookupService) distinct(ctx context.Context, column string) ([]string, error) {
	if cached, ok := s.cache.Get(column); ok {
		metrics.CacheHits.WithLabelValues(lookupCacheName).Inc()
		return append([]string(nil), cached...), nil
	}
	metrics.CacheMisses.WithLabelValues(lookupCacheName).Inc()

	d := s.store.Dialect()
	col := d.Ident(column)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", col, d.Ident(core.AlertsTable), col)

	values, err := s.store.QueryStrings(ctx, query, nil)
	if err != nil {
		s.logger.Errorw("Failed to list distinct values",
			"column", column,
			"stage", StageLookupFetch,
			"error", err)
		return nil, fmt.Errorf("%s: %w", StageLookupFetch, err)
	}

	s.cache.Add(column, values)
	return append([]string(nil), values...), nil
}

// ListApplications returns the distinct application_from values
func (s *LookupService) ListApplications(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, core.FieldApplicationFrom)
}

// ListDestinations returns the distinct destination_domain values
func (s *LookupService) ListDestinations(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, core.FieldDestinationDomain)
}

// ListAlertTypes returns the distinct type values
func (s *LookupService) ListAlertTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, core.FieldType)
}

// GetTotalAlertCount returns the unfiltered row count. Never cached.
func (s *LookupService) GetTotalAlertCount(ctx context.Context) (int64, error) {
	query, args := search.NewSQLBuilder(s.store.Dialect()).
		Select("COUNT(*)").
		From(core.AlertsTable).
		Build()
	count, err := s.store.QueryCount(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", StageTotalFetch, err)
	}
	return count, nil
}

// Invalidate drops every cached list
func (s *LookupService) Invalidate() {
	s.cache.Purge()
}
