package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"trafficslice/config"
	"trafficslice/storage"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// retryDelay returns the wait before the given retry attempt (1-based)
func retryDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// openBackend connects to the configured backend without instrumentation
func openBackend(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return storage.NewSQLite(cfg.Store.SQLitePath, sugar)
	case config.DriverPostgres:
		return storage.NewPostgres(ctx, cfg.Store.PostgresDSN, sugar)
	case config.DriverClickHouse:
		return storage.NewClickHouse(ctx, cfg.Store.ClickHouse, sugar)
	default:
		return nil, fmt.Errorf("%w %q", storage.ErrUnsupportedDriver, cfg.Store.Driver)
	}
}

// storeAddress names the backend location for error messages
func storeAddress(cfg *config.Config) string {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return cfg.Store.SQLitePath
	case config.DriverClickHouse:
		return cfg.Store.ClickHouse.Addr
	default:
		return "the configured Postgres server"
	}
}

// InitStore connects to the configured backend, retrying remote backends,
// creates the schema when configured to, and wraps the result with tracing,
// metrics and the per-query timeout.
func InitStore(ctx context.Context, cfg *config.Config, tracer trace.Tracer, sugar *zap.SugaredLogger) (*storage.InstrumentedStore, error) {
	retries := cfg.Store.ConnectRetries
	if cfg.Store.Driver == config.DriverSQLite {
		retries = 0
	}

	var (
		backend storage.Store
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			sugar.Infow("Retrying store connection",
				"driver", cfg.Store.Driver,
				"attempt", attempt,
				"max_retries", retries,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		backend, lastErr = openBackend(ctx, cfg, sugar)
		if lastErr == nil {
			break
		}
		sugar.Warnw("Store connection attempt failed",
			"driver", cfg.Store.Driver,
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: %s store unavailable\n", cfg.Store.Driver)
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", ClassifyConnectionError(lastErr, cfg.Store.Driver, storeAddress(cfg)))
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Store.Driver, retries+1, lastErr)
	}

	if cfg.Store.EnsureSchema {
		seeder, ok := backend.(storage.Seeder)
		if !ok {
			_ = backend.Close()
			return nil, fmt.Errorf("%s store cannot create its schema", cfg.Store.Driver)
		}
		if err := seeder.EnsureSchema(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to create alerts schema: %w", err)
		}
		sugar.Infow("Alerts schema ready", "driver", cfg.Store.Driver)
	}

	sugar.Infow("Connected to store", "driver", cfg.Store.Driver)
	return storage.NewInstrumentedStore(backend, cfg.Store.Driver, sugar,
		storage.WithTracer(tracer),
		storage.WithQueryTimeout(cfg.Query.Timeout),
	), nil
}
