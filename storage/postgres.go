package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"trafficslice/core"
	"trafficslice/search"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres is the PostgreSQL-backed Store. Query text must use $n
// placeholders, which search.SQLBuilder emits for search.DialectPostgres.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
	closed atomic.Bool
}

// NewPostgres opens a pgxpool connection to connStr and pings the database.
func NewPostgres(ctx context.Context, connStr string, logger *zap.SugaredLogger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}

	cfg := pool.Config()
	logger.Infow("Connected to PostgreSQL",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns)

	return &Postgres{pool: pool, logger: logger}, nil
}

// Dialect returns search.DialectPostgres
func (s *Postgres) Dialect() search.Dialect {
	return search.DialectPostgres
}

func (s *Postgres) query(ctx context.Context, query string, args []interface{}) (pgx.Rows, error) {
	if s.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryAlerts runs a query selecting the seven alert columns in table order
func (s *Postgres) QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]core.Alert, 0)
	for rows.Next() {
		var a core.Alert
		var message *string
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
		if message != nil {
			a.Message = *message
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// QueryDataPoints runs a query selecting count, time_key, dimension_key
func (s *Postgres) QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]core.AnalyticsDataPoint, 0)
	for rows.Next() {
		var p core.AnalyticsDataPoint
		var timeKey *string
		if err := rows.Scan(&p.Count, &timeKey, &p.DimensionKey); err != nil {
			return nil, fmt.Errorf("failed to scan data point: %w", err)
		}
		if timeKey != nil {
			p.TimeKey = *timeKey
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data points: %w", err)
	}
	return points, nil
}

// QueryCount runs a query returning a single bigint
func (s *Postgres) QueryCount(ctx context.Context, query string, args []interface{}) (int64, error) {
	if s.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	return count, nil
}

// QueryStrings runs a query returning one text column. NULLs are skipped.
func (s *Postgres) QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		if v != nil {
			values = append(values, *v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return values, nil
}

// EnsureSchema creates the alerts table and its indexes
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(search.DialectPostgres) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create alerts schema: %w", err)
		}
	}
	return nil
}

// SeedAlerts inserts alerts in a single transaction
func (s *Postgres) SeedAlerts(ctx context.Context, alerts []core.Alert) error {
	if err := validateAlerts(alerts); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	insert := insertAlertSQL(search.DialectPostgres)
	for _, a := range alerts {
		batch.Queue(insert, alertValues(a)...)
	}

	br := tx.SendBatch(ctx, batch)
	for range alerts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping verifies the pool is reachable
func (s *Postgres) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrDatabaseClosed
	}
	return s.pool.Ping(ctx)
}

// Close closes the pool. Safe to call more than once.
func (s *Postgres) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}
