package service

import (
	"context"
	"fmt"
	"time"

	"trafficslice/core"
	"trafficslice/search"

	"go.uber.org/zap"
)

// QueryStore is the read surface the query services need from storage.
// Defined here (consumer package); storage.Store satisfies it.
type QueryStore interface {
	Dialect() search.Dialect
	QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error)
	QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error)
	QueryCount(ctx context.Context, query string, args []interface{}) (int64, error)
	QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error)
}

// Error stages. Store failures are wrapped as "<stage>: <cause>".
const (
	StageAlertFetch   = "alert fetch"
	StageGroupedFetch = "grouped fetch"
	StageTotalFetch   = "total fetch"
	StageLookupFetch  = "lookup fetch"
)

// AlertQueryService answers filtered, sorted, paginated alert listings.
//
// BUSINESS LOGIC:
//  1. Apply defaults to a nil filter
//  2. Compile row predicates
//  3. Validate ordering and the page window
//  4. Issue one SELECT of the seven alert columns
//
// Validation errors (search.ErrInvalidOrderBy, search.ErrInvalidOrder,
// search.ErrInvalidPagination) are returned before any SQL text exists.
type AlertQueryService struct {
	store       QueryStore
	logger      *zap.SugaredLogger
	maxPageSize int
}

// NewAlertQueryService creates an AlertQueryService. maxPageSize caps the
// page window; zero or negative leaves it uncapped.
func NewAlertQueryService(store QueryStore, logger *zap.SugaredLogger, maxPageSize int) *AlertQueryService {
	if store == nil {
		panic("store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &AlertQueryService{
		store:       store,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

// BuildAlertsQuery renders the statement GetAlerts would run for filter.
func (s *AlertQueryService) BuildAlertsQuery(filter *core.AlertFilter) (string, []interface{}, error) {
	if filter == nil {
		filter = core.NewAlertFilter()
	}
	d := s.store.Dialect()

	plan, err := search.PlanSortAndPage(filter, s.maxPageSize)
	if err != nil {
		return "", nil, err
	}
	predicate := search.CompilePredicates(d, filter.Criteria())

	query, args := search.NewSQLBuilder(d).
		Columns(core.AlertFields...).
		From(core.AlertsTable).
		WherePredicate(predicate).
		OrderBy(plan.OrderBy(d)...).
		Limit(plan.PageSize).
		Offset(plan.Offset).
		Build()
	return query, args, nil
}

// GetAlerts returns one page of alerts matching filter, in store order.
func (s *AlertQueryService) GetAlerts(ctx context.Context, filter *core.AlertFilter) ([]core.Alert, error) {
	query, args, err := s.BuildAlertsQuery(filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	alerts, err := s.store.QueryAlerts(ctx, query, args)
	if err != nil {
		s.logger.Errorw("Failed to fetch alerts",
			"stage", StageAlertFetch,
			"error", err)
		return nil, fmt.Errorf("%s: %w", StageAlertFetch, err)
	}

	s.logger.Debugw("Fetched alerts",
		"rows", len(alerts),
		"duration", time.Since(start))
	return alerts, nil
}
