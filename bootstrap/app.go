package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"trafficslice/api"
	"trafficslice/config"
	"trafficslice/core"
	"trafficslice/storage"
	"trafficslice/util/goroutine"

	"go.uber.org/zap"
)

// App represents the trafficslice service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Store     *storage.InstrumentedStore
	Cache     *core.RedisCache
	Services  *Services
	APIServer *api.API

	tracerShutdown func(context.Context) error
	goroutines     *goroutine.Group
	shutdownOnce   sync.Once
}

// NewApp loads configuration from configPath (or the default locations)
// and initializes every component.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := InitConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, _, err := InitLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(ctx, cfg, logger)
}

// New initializes every component from an already loaded configuration.
// The store connection is established here, before any request is served.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sugar := logger.Sugar()
	sugar.Info("trafficslice starting...")
	logConfig(cfg, sugar)

	tracer, tracerShutdown, err := InitTracer(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := InitStore(ctx, cfg, tracer, sugar)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, err
	}

	cache := InitCache(ctx, cfg, sugar)

	return &App{
		Config:         cfg,
		Logger:         logger,
		Sugar:          sugar,
		Store:          store,
		Cache:          cache,
		Services:       InitServices(store, cache, cfg, sugar),
		tracerShutdown: tracerShutdown,
		goroutines:     goroutine.NewGroup(sugar),
	}, nil
}

// Start starts the API server in the background.
func (a *App) Start(ctx context.Context) error {
	if a.APIServer != nil {
		return errors.New("app already started")
	}
	a.APIServer = api.NewAPI(
		a.Services.Alerts,
		a.Services.Analytics,
		a.Services.Lookups,
		a.Store,
		a.Config,
		a.Sugar,
	)

	addr := fmt.Sprintf(":%d", a.Config.API.Port)
	a.goroutines.Go("api-server", func() error {
		a.Sugar.Infow("API server listening", "addr", addr)
		if err := a.APIServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is done.
func (a *App) WaitForShutdown(ctx context.Context) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
}

// Shutdown gracefully shuts down all components. It is safe to call more
// than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	a.Sugar.Info("Phase 1: Stopping API server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop API server", "error", err)
		}
		cancel()
	}

	a.Sugar.Info("Phase 2: Waiting for service goroutines to complete...")
	done := make(chan struct{})
	go func() {
		defer goroutine.Recover("shutdown-wait", a.Sugar)
		a.goroutines.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("All service goroutines stopped successfully")
	case <-time.After(10 * time.Second):
		a.Sugar.Warn("Service goroutine shutdown timed out")
	}

	a.Sugar.Info("Phase 3: Closing cache and store connections...")
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Sugar.Errorw("Failed to close Redis cache", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Sugar.Errorw("Failed to close store", "error", err)
		}
	}

	a.Sugar.Info("Phase 4: Flushing spans...")
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracerShutdown(ctx); err != nil {
			a.Sugar.Errorw("Failed to flush spans", "error", err)
		}
		cancel()
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}

// Errors returns failures of background goroutines, keyed by name
func (a *App) Errors() map[string]error {
	return a.goroutines.Errors()
}
