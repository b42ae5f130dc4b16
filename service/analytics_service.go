package service

import (
	"context"
	"fmt"
	"time"

	"trafficslice/core"
	"trafficslice/metrics"
	"trafficslice/search"

	"go.uber.org/zap"
)

// AnalyticsQueryService answers grouped alert counts over time buckets and
// an optional dimension.
type AnalyticsQueryService struct {
	store  QueryStore
	logger *zap.SugaredLogger
	now    func() time.Time
}

// AnalyticsOption configures an AnalyticsQueryService
type AnalyticsOption func(*AnalyticsQueryService)

// WithClock overrides the clock used for the synthesized today bucket
func WithClock(now func() time.Time) AnalyticsOption {
	return func(s *AnalyticsQueryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAnalyticsQueryService creates an AnalyticsQueryService
func NewAnalyticsQueryService(store QueryStore, logger *zap.SugaredLogger, opts ...AnalyticsOption) *AnalyticsQueryService {
	if store == nil {
		panic("store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	s := &AnalyticsQueryService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTimeDimensionOnly reports whether the request groups by time alone with
// no application, destination, type or exact severity filter. minSeverity,
// minTimestamp and the date range do not disqualify a request.
func IsTimeDimensionOnly(f *core.AnalyticsFilter) bool {
	return f.DimensionGroupBy.IsNone() &&
		f.ApplicationFrom == "" &&
		f.DestinationDomain == "" &&
		f.Type == "" &&
		f.Severity == 0
}

// analyticsQueries holds the grouped statement and the ungrouped total over
// the same predicate.
type analyticsQueries struct {
	grouping     search.Grouping
	groupedQuery string
	groupedArgs  []interface{}
	totalQuery   string
	totalArgs    []interface{}
}

func (s *AnalyticsQueryService) buildQueries(f *core.AnalyticsFilter) (analyticsQueries, error) {
	d := s.store.Dialect()

	grouping, err := search.ResolveGrouping(d, f.TimeGroupBy, f.DimensionGroupBy)
	if err != nil {
		return analyticsQueries{}, err
	}
	predicate := search.CompilePredicates(d, f.Criteria())

	q := analyticsQueries{grouping: grouping}
	q.groupedQuery, q.groupedArgs = search.NewSQLBuilder(d).
		Select(grouping.Select...).
		From(core.AlertsTable).
		WherePredicate(predicate).
		GroupBy(grouping.GroupBy...).
		OrderBy(grouping.OrderBy...).
		Build()
	q.totalQuery, q.totalArgs = search.NewSQLBuilder(d).
		Select("COUNT(*)").
		From(core.AlertsTable).
		WherePredicate(predicate).
		Build()
	return q, nil
}

// GetAlertAnalytics returns one data point per (time bucket, dimension) group.
//
// For time-only requests the ungrouped total is fetched first. When the
// grouped query then yields no rows while the total is positive, a single
// point carrying the total under today's day bucket is returned instead.
func (s *AnalyticsQueryService) GetAlertAnalytics(ctx context.Context, f *core.AnalyticsFilter) ([]core.AnalyticsDataPoint, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: analytics filter is required", search.ErrInvalidGrouping)
	}

	q, err := s.buildQueries(f)
	if err != nil {
		return nil, err
	}

	if !IsTimeDimensionOnly(f) {
		points, err := s.store.QueryDataPoints(ctx, q.groupedQuery, q.groupedArgs)
		if err != nil {
			s.logger.Errorw("Failed to fetch alert analytics", "stage", StageGroupedFetch, "error", err)
			return nil, fmt.Errorf("%s: %w", StageGroupedFetch, err)
		}
		s.logger.Debugw("Fetched alert analytics",
			"mode", q.grouping.Mode.String(),
			"rows", len(points))
		return points, nil
	}

	total, err := s.store.QueryCount(ctx, q.totalQuery, q.totalArgs)
	if err != nil {
		s.logger.Errorw("Failed to fetch alert total", "stage", StageTotalFetch, "error", err)
		return nil, fmt.Errorf("%s: %w", StageTotalFetch, err)
	}

	points, err := s.store.QueryDataPoints(ctx, q.groupedQuery, q.groupedArgs)
	if err != nil {
		s.logger.Errorw("Failed to fetch alert analytics", "stage", StageGroupedFetch, "error", err)
		return nil, fmt.Errorf("%s: %w", StageGroupedFetch, err)
	}

	if len(points) == 0 && total > 0 {
		metrics.AnalyticsFallbacks.Inc()
		today := s.now().Format(core.TimeGroupByDay.Layout())
		s.logger.Warnw("Grouped analytics empty with matching rows; reporting total under today",
			"total", total,
			"time_key", today)
		return []core.AnalyticsDataPoint{{Count: total, TimeKey: today}}, nil
	}

	s.logger.Debugw("Fetched alert analytics",
		"mode", q.grouping.Mode.String(),
		"rows", len(points),
		"total", total)
	return points, nil
}
