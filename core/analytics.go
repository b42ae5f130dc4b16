package core

import "fmt"

// TimeGroupBy is the granularity of the time axis of an aggregation.
type TimeGroupBy string

const (
	TimeGroupByHour  TimeGroupBy = "hour"
	TimeGroupByDay   TimeGroupBy = "day"
	TimeGroupByMonth TimeGroupBy = "month"
)

// Valid reports whether t is one of the known granularities.
func (t TimeGroupBy) Valid() bool {
	switch t {
	case TimeGroupByHour, TimeGroupByDay, TimeGroupByMonth:
		return true
	default:
		return false
	}
}

// Layout returns the Go time layout matching the bucket label format.
func (t TimeGroupBy) Layout() string {
	switch t {
	case TimeGroupByHour:
		return "2006-01-02 15:00"
	case TimeGroupByMonth:
		return "2006-01"
	default:
		return "2006-01-02"
	}
}

// ParseTimeGroupBy parses a granularity name.
func ParseTimeGroupBy(s string) (TimeGroupBy, error) {
	t := TimeGroupBy(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid timeGroupBy %q", s)
	}
	return t, nil
}

// DimensionGroupBy is the categorical axis of an aggregation.
type DimensionGroupBy string

const (
	DimensionApplication DimensionGroupBy = "application"
	DimensionType        DimensionGroupBy = "type"
	DimensionSeverity    DimensionGroupBy = "severity"
	DimensionAlertName   DimensionGroupBy = "alert_name"
	DimensionDestination DimensionGroupBy = "destination"
	DimensionNone        DimensionGroupBy = "none"
)

// Valid reports whether d is one of the known dimensions.
func (d DimensionGroupBy) Valid() bool {
	switch d {
	case DimensionApplication, DimensionType, DimensionSeverity,
		DimensionAlertName, DimensionDestination, DimensionNone:
		return true
	default:
		return false
	}
}

// IsNone reports whether the request has no categorical axis. The empty
// value counts as none.
func (d DimensionGroupBy) IsNone() bool {
	return d == "" || d == DimensionNone
}

// ParseDimensionGroupBy parses a dimension name.
func ParseDimensionGroupBy(s string) (DimensionGroupBy, error) {
	d := DimensionGroupBy(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid dimensionGroupBy %q", s)
	}
	return d, nil
}

// AnalyticsDataPoint is one bucket of an aggregation.
type AnalyticsDataPoint struct {
	Count        int64   `json:"count" yaml:"count" msgpack:"count"`
	TimeKey      string  `json:"time_key" yaml:"time_key" msgpack:"time_key"`
	DimensionKey *string `json:"dimension_key" yaml:"dimension_key" msgpack:"dimension_key"`
}

// SumCounts returns the total count across points.
func SumCounts(points []AnalyticsDataPoint) int64 {
	var total int64
	for _, p := range points {
		total += p.Count
	}
	return total
}
