package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"trafficslice/core"
	"trafficslice/search"

	"go.uber.org/zap"
)

// SQLStore implements Store over a database/sql pool.
type SQLStore struct {
	db      *sql.DB
	dialect search.Dialect
	logger  *zap.SugaredLogger
	closed  atomic.Bool
}

// NewSQLStore wraps db. The caller keeps ownership of db unless Close is
// called on the store.
func NewSQLStore(db *sql.DB, dialect search.Dialect, logger *zap.SugaredLogger) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// Dialect returns the SQL flavour of the pool
func (s *SQLStore) Dialect() search.Dialect {
	return s.dialect
}

func (s *SQLStore) query(ctx context.Context, query string, args []interface{}) (*sql.Rows, error) {
	if s.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryAlerts runs a query selecting the seven alert columns in table order
func (s *SQLStore) QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]core.Alert, 0)
	for rows.Next() {
		var a core.Alert
		var message sql.NullString
		if err := rows.Scan(
			&a.AlertName,
			&message,
			&a.ApplicationFrom,
			&a.DestinationDomain,
			&a.Type,
			&a.Severity,
			&a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Message = message.String
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// QueryDataPoints runs a query selecting count, time_key, dimension_key
func (s *SQLStore) QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]core.AnalyticsDataPoint, 0)
	for rows.Next() {
		var p core.AnalyticsDataPoint
		var timeKey, dimensionKey sql.NullString
		if err := rows.Scan(&p.Count, &timeKey, &dimensionKey); err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		p.TimeKey = timeKey.String
		if dimensionKey.Valid {
			key := dimensionKey.String
			p.DimensionKey = &key
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data points: %w", err)
	}
	return points, nil
}

// QueryCount runs a query returning a single integer
func (s *SQLStore) QueryCount(ctx context.Context, query string, args []interface{}) (int64, error) {
	if s.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return count, nil
}

// QueryStrings runs a query returning one text column. NULLs are skipped.
func (s *SQLStore) QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return values, nil
}

// Ping verifies the pool is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool
func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
