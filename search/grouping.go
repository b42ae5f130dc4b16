package search

import (
	"fmt"

	"trafficslice/core"
)

// GroupingMode is the shape of an aggregation.
type GroupingMode int

const (
	// GroupingTimeOnly groups by the time bucket alone
	GroupingTimeOnly GroupingMode = iota + 1
	// GroupingDimensionOnly groups by the dimension alone. ResolveGrouping
	// never returns it: the time axis is always present.
	GroupingDimensionOnly
	// GroupingComposite groups by time bucket and dimension
	GroupingComposite
)

func (m GroupingMode) String() string {
	switch m {
	case GroupingTimeOnly:
		return "time_only"
	case GroupingDimensionOnly:
		return "dimension_only"
	case GroupingComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Output column aliases of an aggregation.
const (
	CountAlias        = "count"
	TimeKeyAlias      = "time_key"
	DimensionKeyAlias = "dimension_key"
)

// Grouping is a resolved aggregation plan. All expressions are
// precompiled; none are derived from request text.
type Grouping struct {
	Mode          GroupingMode
	TimeExpr      string
	DimensionExpr string
	Select        []string
	GroupBy       []string
	OrderBy       []string
}

var dimensionColumns = map[core.DimensionGroupBy]string{
	core.DimensionApplication: core.FieldApplicationFrom,
	core.DimensionType:        core.FieldType,
	core.DimensionAlertName:   core.FieldAlertName,
	core.DimensionDestination: core.FieldDestinationDomain,
	core.DimensionSeverity:    core.FieldSeverity,
}

// dimensionExpr projects a dimension as text. none becomes a typed NULL so
// every row still fits the count/time_key/dimension_key shape.
func dimensionExpr(d Dialect, dim core.DimensionGroupBy) (string, error) {
	if dim.IsNone() {
		return d.NullText(), nil
	}
	column, ok := dimensionColumns[dim]
	if !ok {
		return "", fmt.Errorf("%w: dimensionGroupBy %q", ErrInvalidGrouping, dim)
	}
	if dim == core.DimensionSeverity {
		return d.TextCast(column), nil
	}
	return d.Ident(column), nil
}

// ResolveGrouping maps a time granularity and dimension to projection,
// grouping and ordering expressions. Composite groupings order by time
// ascending then count descending; time-only groupings by time ascending.
func ResolveGrouping(d Dialect, t core.TimeGroupBy, dim core.DimensionGroupBy) (Grouping, error) {
	if !t.Valid() {
		return Grouping{}, fmt.Errorf("%w: timeGroupBy %q", ErrInvalidGrouping, t)
	}
	if dim != "" && !dim.Valid() {
		return Grouping{}, fmt.Errorf("%w: dimensionGroupBy %q", ErrInvalidGrouping, dim)
	}

	timeExpr, err := d.TimeBucket(t)
	if err != nil {
		return Grouping{}, err
	}
	dimExpr, err := dimensionExpr(d, dim)
	if err != nil {
		return Grouping{}, err
	}

	g := Grouping{
		TimeExpr:      timeExpr,
		DimensionExpr: dimExpr,
		Select: []string{
			"COUNT(*) AS " + CountAlias,
			timeExpr + " AS " + TimeKeyAlias,
			dimExpr + " AS " + DimensionKeyAlias,
		},
	}

	if dim.IsNone() {
		g.Mode = GroupingTimeOnly
		g.GroupBy = []string{timeExpr}
		g.OrderBy = []string{TimeKeyAlias + " ASC"}
		return g, nil
	}

	g.Mode = GroupingComposite
	g.GroupBy = []string{timeExpr, dimExpr}
	g.OrderBy = []string{TimeKeyAlias + " ASC", CountAlias + " DESC"}
	return g, nil
}
