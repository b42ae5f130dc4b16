package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"sync/atomic"
	"time"

	"trafficslice/config"
	"trafficslice/core"
	"trafficslice/search"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var (
	// validDatabaseNameRegex ensures database names are safe from SQL injection
	validDatabaseNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ClickHouse holds the ClickHouse connection and implements Store and Seeder
type ClickHouse struct {
	Conn   driver.Conn
	Config config.ClickHouseConfig
	Logger *zap.SugaredLogger
	closed atomic.Bool
}

// NewClickHouse creates a new ClickHouse connection
func NewClickHouse(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.SugaredLogger) (*ClickHouse, error) {
	if err := validateDatabaseName(cfg.Database); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}

	poolSize := cfg.MaxPoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	options := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     poolSize,
		MaxIdleConns:     poolSize / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	if cfg.TLS {
		options.TLS = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Infow("Connected to ClickHouse", "addr", cfg.Addr, "database", cfg.Database)

	return &ClickHouse{
		Conn:   conn,
		Config: cfg,
		Logger: logger,
	}, nil
}

// validateDatabaseName ensures the database name is safe from SQL injection
func validateDatabaseName(database string) error {
	if database == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if len(database) > 64 {
		return fmt.Errorf("database name too long (max 64 characters)")
	}
	if !validDatabaseNameRegex.MatchString(database) {
		return fmt.Errorf("database name contains invalid characters (only alphanumeric and underscore allowed)")
	}
	return nil
}

// Dialect returns search.DialectClickHouse
func (ch *ClickHouse) Dialect() search.Dialect {
	return search.DialectClickHouse
}

func (ch *ClickHouse) query(ctx context.Context, query string, args []interface{}) (driver.Rows, error) {
	if ch.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	rows, err := ch.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryAlerts runs a query selecting the seven alert columns in table order
func (ch *ClickHouse) QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error) {
	rows, err := ch.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]core.Alert, 0)
	for rows.Next() {
		var a core.Alert
		var severity int64
		if err := rows.Scan(
			&a.AlertName,
			&a.Message,
			&a.ApplicationFrom,
			&a.DestinationDomain,
			&a.Type,
			&severity,
			&a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = int(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// QueryDataPoints runs a query selecting count, time_key, dimension_key
func (ch *ClickHouse) QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error) {
	rows, err := ch.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]core.AnalyticsDataPoint, 0)
	for rows.Next() {
		var (
			count        uint64
			timeKey      string
			dimensionKey *string
		)
		if err := rows.Scan(&count, &timeKey, &dimensionKey); err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		points = append(points, core.AnalyticsDataPoint{
			Count:        int64(count),
			TimeKey:      timeKey,
			DimensionKey: dimensionKey,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data points: %w", err)
	}
	return points, nil
}

// QueryCount runs a query returning a single count()
func (ch *ClickHouse) QueryCount(ctx context.Context, query string, args []interface{}) (int64, error) {
	if ch.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	var count uint64
	if err := ch.Conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return int64(count), nil
}

// QueryStrings runs a query returning one String column
func (ch *ClickHouse) QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	rows, err := ch.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return values, nil
}

// EnsureSchema creates the alerts table if it doesn't exist
func (ch *ClickHouse) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(search.DialectClickHouse) {
		if err := ch.Conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create alerts table: %w", err)
		}
	}
	ch.Logger.Info("Alerts table created/verified")
	return nil
}

// SeedAlerts inserts alerts as one batch
func (ch *ClickHouse) SeedAlerts(ctx context.Context, alerts []core.Alert) error {
	if err := validateAlerts(alerts); err != nil {
		return err
	}

	batch, err := ch.Conn.PrepareBatch(ctx, "INSERT INTO alerts")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, a := range alerts {
		if err := batch.Append(
			a.AlertName,
			a.Message,
			a.ApplicationFrom,
			a.DestinationDomain,
			a.Type,
			int64(a.Severity),
			a.Timestamp,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append alert to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Ping performs a health check on the ClickHouse connection
func (ch *ClickHouse) Ping(ctx context.Context) error {
	if ch.closed.Load() {
		return ErrDatabaseClosed
	}
	return ch.Conn.Ping(ctx)
}

// GetVersion returns the ClickHouse server version
func (ch *ClickHouse) GetVersion(ctx context.Context) (string, error) {
	var version string
	err := ch.Conn.QueryRow(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// Close closes the ClickHouse connection
func (ch *ClickHouse) Close() error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}
	return ch.Conn.Close()
}
