package api

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"trafficslice/core"

	"github.com/go-playground/validator/v10"
)

// predicateParams are the row predicates shared by both query endpoints
type predicateParams struct {
	AlertName         string `query:"alert_name" validate:"max=256"`
	Message           string `query:"message" validate:"max=256"`
	ApplicationFrom   string `query:"application_from" validate:"max=256"`
	DestinationDomain string `query:"destination_domain" validate:"max=256"`
	Type              string `query:"type" validate:"max=256"`
	Severity          int    `query:"severity" validate:"omitempty,min=1,max=5"`
	MinSeverity       int    `query:"minSeverity" validate:"omitempty,min=1,max=5"`
	MinTimestamp      string `query:"minTimestamp" validate:"max=64"`
}

// alertsRequest is the query string of GET /api/alerts
type alertsRequest struct {
	predicateParams

	Offset   *int   `query:"offset" validate:"omitempty,min=0"`
	PageSize *int   `query:"pageSize" validate:"omitempty,min=0"`
	Limit    *int   `query:"limit" validate:"omitempty,min=0"`
	Cursor   *int   `query:"cursor" validate:"omitempty,min=0"`
	OrderBy  string `query:"orderBy" validate:"omitempty,oneof=alert_name message application_from destination_domain type severity timestamp"`
	Order    string `query:"order" validate:"omitempty,oneof=asc desc"`
}

// analyticsRequest is the query string of GET /api/analytics/alerts
type analyticsRequest struct {
	predicateParams

	TimeGroupBy      string `query:"timeGroupBy" validate:"required,oneof=day month hour"`
	DimensionGroupBy string `query:"dimensionGroupBy" validate:"required,oneof=application type severity alert_name destination none"`
	StartDate        string `query:"startDate" validate:"max=64"`
	EndDate          string `query:"endDate" validate:"max=64"`
}

// newValidator returns a validator that reports fields by their query
// parameter names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("query"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// intParam parses an optional integer query parameter
func intParam(q url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

func parsePredicateParams(q url.Values) (predicateParams, error) {
	p := predicateParams{
		AlertName:         q.Get("alert_name"),
		Message:           q.Get("message"),
		ApplicationFrom:   q.Get("application_from"),
		DestinationDomain: q.Get("destination_domain"),
		Type:              q.Get("type"),
		MinTimestamp:      q.Get("minTimestamp"),
	}
	severity, err := intParam(q, "severity")
	if err != nil {
		return p, err
	}
	if severity != nil {
		p.Severity = *severity
	}
	minSeverity, err := intParam(q, "minSeverity")
	if err != nil {
		return p, err
	}
	if minSeverity != nil {
		p.MinSeverity = *minSeverity
	}
	return p, nil
}

func (p predicateParams) toPredicates() core.AlertPredicates {
	return core.AlertPredicates{
		AlertName:         p.AlertName,
		Message:           p.Message,
		ApplicationFrom:   p.ApplicationFrom,
		DestinationDomain: p.DestinationDomain,
		Type:              p.Type,
		Severity:          p.Severity,
		MinSeverity:       p.MinSeverity,
		MinTimestamp:      p.MinTimestamp,
	}
}

// parseAlertsRequest coerces and validates the alert listing parameters
// and folds the legacy limit/cursor pair into the filter.
func (a *API) parseAlertsRequest(q url.Values) (*core.AlertFilter, error) {
	var (
		req alertsRequest
		err error
	)
	if req.predicateParams, err = parsePredicateParams(q); err != nil {
		return nil, err
	}
	for name, dst := range map[string]**int{
		"offset":   &req.Offset,
		"pageSize": &req.PageSize,
		"limit":    &req.Limit,
		"cursor":   &req.Cursor,
	} {
		if *dst, err = intParam(q, name); err != nil {
			return nil, err
		}
	}
	req.OrderBy = q.Get("orderBy")
	req.Order = strings.ToLower(q.Get("order"))

	if err := a.validate.Struct(req); err != nil {
		return nil, describeValidation(err)
	}

	filter := core.NewAlertFilter()
	filter.AlertPredicates = req.toPredicates()
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.Order != "" {
		filter.Order = req.Order
	}
	if req.Offset != nil {
		filter.Offset = *req.Offset
	}
	if req.PageSize != nil {
		filter.SetPageSize(*req.PageSize)
	}
	legacy := core.LegacyPagination{Limit: req.Limit, Cursor: req.Cursor}
	if err := filter.ApplyLegacy(legacy, req.Offset != nil || req.PageSize != nil); err != nil {
		return nil, err
	}
	return filter, nil
}

// parseAnalyticsRequest coerces and validates the analytics parameters
func (a *API) parseAnalyticsRequest(q url.Values) (*core.AnalyticsFilter, error) {
	var (
		req analyticsRequest
		err error
	)
	if req.predicateParams, err = parsePredicateParams(q); err != nil {
		return nil, err
	}
	req.TimeGroupBy = q.Get("timeGroupBy")
	req.DimensionGroupBy = q.Get("dimensionGroupBy")
	req.StartDate = q.Get("startDate")
	req.EndDate = q.Get("endDate")

	if err := a.validate.Struct(req); err != nil {
		return nil, describeValidation(err)
	}

	return &core.AnalyticsFilter{
		AlertPredicates:  req.toPredicates(),
		TimeGroupBy:      core.TimeGroupBy(req.TimeGroupBy),
		DimensionGroupBy: core.DimensionGroupBy(req.DimensionGroupBy),
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}, nil
}

// describeValidation renders validator errors as "field: rule" pairs
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), rule))
	}
	return errors.New(strings.Join(parts, "; "))
}
