package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trafficslice/core"
	"trafficslice/search"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// memoryPrefix names a private shared-cache in-memory database,
// e.g. "memory:alerts_test".
const memoryPrefix = "memory:"

// SQLite holds the SQLite connection pools. Queries go through the embedded
// SQLStore on the read pool; the write pool is only used for schema and
// fixture loading.
type SQLite struct {
	*SQLStore
	WriteDB *sql.DB // Single writer (MaxOpenConns=1)
	ReadDB  *sql.DB // query_only readers
	Path    string
	Logger  *zap.SugaredLogger
}

// sqliteDSN returns the driver DSN for dbPath plus whether it is in-memory.
// Both pools of an in-memory database must share one cache or each
// connection would see its own empty database.
func sqliteDSN(dbPath string) (string, bool) {
	switch {
	case dbPath == ":memory:":
		return "file::memory:?cache=shared", true
	case strings.HasPrefix(dbPath, memoryPrefix):
		return "file:" + strings.TrimPrefix(dbPath, memoryPrefix) + "?mode=memory&cache=shared", true
	default:
		return dbPath, false
	}
}

// withPragmas appends per-connection pragmas to a DSN
func withPragmas(dsn string, pragmas ...string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// configureWritePool enables WAL and the busy timeout on the single writer
func configureWritePool(db *sql.DB, logger *zap.SugaredLogger, inMemory bool) error {
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	// In-memory databases report "memory"
	if !inMemory && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s, expected: wal)", journalMode)
	}
	logger.Infow("SQLite write pool configured", "journal_mode", journalMode)
	return nil
}

// NewSQLite opens the SQLite database at dbPath with separate read and
// write pools.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	dsn, inMemory := sqliteDSN(dbPath)
	if !inMemory {
		if err := validateDatabasePath(dbPath); err != nil {
			return nil, fmt.Errorf("invalid database path: %w", err)
		}
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0) // an in-memory database lives as long as this connection
	if err := configureWritePool(writeDB, logger, inMemory); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}

	readDB, err := sql.Open("sqlite", withPragmas(dsn, "busy_timeout(5000)", "query_only(1)"))
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	var queryOnly int
	if err := readDB.QueryRow("PRAGMA query_only").Scan(&queryOnly); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to verify query_only mode: %w", err)
	}
	if queryOnly != 1 {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("query_only mode not enabled on read pool (got: %d, expected: 1)", queryOnly)
	}

	logger.Infow("SQLite database initialized",
		"path", dbPath,
		"in_memory", inMemory,
		"read_pool_size", 10)

	return &SQLite{
		SQLStore: NewSQLStore(readDB, search.DialectSQLite, logger),
		WriteDB:  writeDB,
		ReadDB:   readDB,
		Path:     dbPath,
		Logger:   logger,
	}, nil
}

// EnsureSchema creates the alerts table and its indexes
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(search.DialectSQLite) {
		if _, err := s.WriteDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create alerts schema: %w", err)
		}
	}
	return nil
}

// SeedAlerts inserts alerts in a single transaction
func (s *SQLite) SeedAlerts(ctx context.Context, alerts []core.Alert) error {
	if err := validateAlerts(alerts); err != nil {
		return err
	}
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertAlertSQL(search.DialectSQLite))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range alerts {
			if _, err := stmt.ExecContext(ctx, alertValues(a)...); err != nil {
				return fmt.Errorf("failed to insert alert: %w", err)
			}
		}
		return nil
	})
}

// WithTransaction executes fn within a write transaction, rolling back on
// error or panic.
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes both pools
func (s *SQLite) Close() error {
	readErr := s.SQLStore.Close()
	writeErr := s.WriteDB.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to close write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to close read pool: %w", readErr)
	}
	return nil
}

// validateDatabasePath rejects paths that could escape the working or temp
// directory.
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	}
	if strings.Contains(dbPath, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed (..): %s", dbPath)
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if strings.HasPrefix(absPath, filepath.Clean(os.TempDir())) {
		return nil
	}
	if filepath.IsAbs(dbPath) {
		return fmt.Errorf("absolute paths not allowed: %s", dbPath)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if !strings.HasPrefix(absPath, workDir) {
		return fmt.Errorf("path escapes working directory: %s", dbPath)
	}
	return nil
}
