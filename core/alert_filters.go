package core

import (
	"errors"
	"fmt"
)

// ErrMixedPagination is returned when a request supplies both the legacy
// limit/cursor pair and the offset/pageSize pair.
var ErrMixedPagination = errors.New("limit/cursor and offset/pageSize cannot be combined")

// AlertPredicates holds the row predicates shared by alert and analytics
// requests. Empty strings and zero integers mean "not provided".
type AlertPredicates struct {
	AlertName         string `json:"alert_name,omitempty" yaml:"alert_name,omitempty"`
	Message           string `json:"message,omitempty" yaml:"message,omitempty"`
	ApplicationFrom   string `json:"application_from,omitempty" yaml:"application_from,omitempty"`
	DestinationDomain string `json:"destination_domain,omitempty" yaml:"destination_domain,omitempty"`
	Type              string `json:"type,omitempty" yaml:"type,omitempty"`
	Severity          int    `json:"severity,omitempty" yaml:"severity,omitempty"`
	MinSeverity       int    `json:"minSeverity,omitempty" yaml:"minSeverity,omitempty"`
	MinTimestamp      string `json:"minTimestamp,omitempty" yaml:"minTimestamp,omitempty"`
}

// Criteria is the full set of row predicates a query compiles into its
// WHERE clause: the shared predicates plus inclusive timestamp bounds.
type Criteria struct {
	AlertPredicates
	StartDate string
	EndDate   string
}

// AlertFilter selects a page of alerts.
type AlertFilter struct {
	AlertPredicates `yaml:",inline"`

	// Pagination
	Offset   int `json:"offset,omitempty" yaml:"offset,omitempty"`
	PageSize int `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
	// EmptyPage marks an explicitly requested page size of zero. A zero
	// PageSize on its own means the default page size.
	EmptyPage bool `json:"-" yaml:"-"`

	// Sorting
	OrderBy string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"` // one of AlertFields
	Order   string `json:"order,omitempty" yaml:"order,omitempty"`     // asc, desc
}

// NewAlertFilter creates a new AlertFilter with default values
func NewAlertFilter() *AlertFilter {
	return &AlertFilter{
		PageSize: MaxAlerts,
		OrderBy:  FieldSeverity,
		Order:    "desc",
	}
}

// Criteria returns the row predicates of the filter.
func (f *AlertFilter) Criteria() Criteria {
	return Criteria{AlertPredicates: f.AlertPredicates}
}

// SetPageSize records a caller-supplied page size, keeping an explicit zero
// distinct from an unset one.
func (f *AlertFilter) SetPageSize(n int) {
	f.PageSize = n
	f.EmptyPage = n == 0
}

// LegacyPagination is the limit/cursor pair older clients send. It is only
// understood at the request boundary; ApplyLegacy folds it into the filter.
type LegacyPagination struct {
	Limit  *int
	Cursor *int
}

// IsSet reports whether either legacy field was supplied.
func (p LegacyPagination) IsSet() bool {
	return p.Limit != nil || p.Cursor != nil
}

// ApplyLegacy converts limit/cursor into PageSize/Offset. offsetSet tells
// whether the caller also supplied offset or pageSize, which is rejected.
func (f *AlertFilter) ApplyLegacy(p LegacyPagination, offsetSet bool) error {
	if !p.IsSet() {
		return nil
	}
	if offsetSet {
		return ErrMixedPagination
	}
	if p.Limit != nil {
		if *p.Limit < 0 {
			return fmt.Errorf("limit must be non-negative, got %d", *p.Limit)
		}
		f.SetPageSize(*p.Limit)
	}
	if p.Cursor != nil {
		if *p.Cursor < 0 {
			return fmt.Errorf("cursor must be non-negative, got %d", *p.Cursor)
		}
		f.Offset = *p.Cursor
	}
	return nil
}

// AnalyticsFilter requests grouped alert counts.
type AnalyticsFilter struct {
	AlertPredicates `yaml:",inline"`

	TimeGroupBy      TimeGroupBy      `json:"timeGroupBy" yaml:"timeGroupBy"`
	DimensionGroupBy DimensionGroupBy `json:"dimensionGroupBy" yaml:"dimensionGroupBy"`

	// Inclusive bounds on timestamp
	StartDate string `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
}

// Criteria returns the row predicates of the filter, grouping axes excluded.
func (f *AnalyticsFilter) Criteria() Criteria {
	return Criteria{
		AlertPredicates: f.AlertPredicates,
		StartDate:       f.StartDate,
		EndDate:         f.EndDate,
	}
}
