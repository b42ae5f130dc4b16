package search

import (
	"fmt"
	"strings"

	"trafficslice/core"
)

// SortPlan is a validated ordering and page window for an alert query.
type SortPlan struct {
	Column    string
	Direction string // ASC or DESC
	Offset    int
	PageSize  int
}

// PlanSortAndPage validates the ordering and pagination of f. The sort
// column must be an alert field; an empty one defaults to severity and an
// empty direction to DESC. A zero page size becomes core.MaxAlerts and
// page sizes above maxPageSize (when positive) are capped.
func PlanSortAndPage(f *core.AlertFilter, maxPageSize int) (SortPlan, error) {
	column := f.OrderBy
	if column == "" {
		column = core.FieldSeverity
	}
	if !core.IsAlertField(column) {
		return SortPlan{}, fmt.Errorf("%w: %q", ErrInvalidOrderBy, f.OrderBy)
	}

	var direction string
	switch strings.ToLower(f.Order) {
	case "", "desc":
		direction = "DESC"
	case "asc":
		direction = "ASC"
	default:
		return SortPlan{}, fmt.Errorf("%w: %q", ErrInvalidOrder, f.Order)
	}

	if f.Offset < 0 {
		return SortPlan{}, fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidPagination, f.Offset)
	}
	if f.PageSize < 0 {
		return SortPlan{}, fmt.Errorf("%w: pageSize must be non-negative, got %d", ErrInvalidPagination, f.PageSize)
	}
	pageSize := f.PageSize
	if pageSize == 0 && !f.EmptyPage {
		pageSize = core.MaxAlerts
	}
	if maxPageSize > 0 && pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return SortPlan{
		Column:    column,
		Direction: direction,
		Offset:    f.Offset,
		PageSize:  pageSize,
	}, nil
}

// OrderBy renders the ORDER BY terms. timestamp DESC is always appended as
// the tie-break, even when the primary column is timestamp.
func (p SortPlan) OrderBy(d Dialect) []string {
	return []string{
		d.Ident(p.Column) + " " + p.Direction,
		d.Ident(core.FieldTimestamp) + " DESC",
	}
}
