package storage

import (
	"context"

	"trafficslice/core"
	"trafficslice/search"
)

// Query kinds, used as metric and span labels
const (
	KindAlerts     = "alerts"
	KindDataPoints = "datapoints"
	KindCount      = "count"
	KindStrings    = "strings"
)

// Store executes parameterised read-only queries against the alerts
// relation and decodes the rows into the engine's result shapes. Query text
// must be rendered for Dialect(); args bind positionally.
type Store interface {
	Dialect() search.Dialect
	QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error)
	QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error)
	QueryCount(ctx context.Context, query string, args []interface{}) (int64, error)
	QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Seeder creates the alerts relation and loads fixture rows. It is used by
// tests and the seed command; the query path never writes.
type Seeder interface {
	EnsureSchema(ctx context.Context) error
	SeedAlerts(ctx context.Context, alerts []core.Alert) error
}
