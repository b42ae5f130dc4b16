// Package api exposes the alert query and analytics engine over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"trafficslice/config"
	"trafficslice/core"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AlertQuerier answers paginated alert listings
type AlertQuerier interface {
	GetAlerts(ctx context.Context, filter *core.AlertFilter) ([]core.Alert, error)
}

// AnalyticsQuerier answers grouped alert counts
type AnalyticsQuerier interface {
	GetAlertAnalytics(ctx context.Context, filter *core.AnalyticsFilter) ([]core.AnalyticsDataPoint, error)
}

// LookupQuerier answers the distinct-value lists and the debug count
type LookupQuerier interface {
	ListApplications(ctx context.Context) ([]string, error)
	ListDestinations(ctx context.Context) ([]string, error)
	ListAlertTypes(ctx context.Context) ([]string, error)
	GetTotalAlertCount(ctx context.Context) (int64, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// API holds the API server
type API struct {
	router         *mux.Router
	server         *http.Server
	serverMu       sync.Mutex
	alerts         AlertQuerier
	analytics      AnalyticsQuerier
	lookups        LookupQuerier
	health         HealthChecker
	config         *config.Config
	logger         *zap.SugaredLogger
	validate       *validator.Validate
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewAPI creates a new API server. health may be nil, in which case
// /health only reports liveness.
func NewAPI(alerts AlertQuerier, analytics AnalyticsQuerier, lookups LookupQuerier, health HealthChecker, config *config.Config, logger *zap.SugaredLogger) *API {
	if alerts == nil || analytics == nil || lookups == nil {
		panic("query services are required")
	}
	if config == nil {
		panic("config is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	api := &API{
		router:       mux.NewRouter(),
		alerts:       alerts,
		analytics:    analytics,
		lookups:      lookups,
		health:       health,
		config:       config,
		logger:       logger,
		validate:     newValidator(),
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	api.setupRoutes()
	go api.cleanupRateLimiters()
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.errorRecoveryMiddleware)
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc("/api/alerts", a.getAlerts).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/api/analytics/alerts", a.getAlertAnalytics).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/api/applications", a.getApplications).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/api/destinations", a.getDestinations).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/api/alert-types", a.getAlertTypes).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/api/debug/alerts/count", a.getAlertCount).Methods("GET", "OPTIONS")
	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler, for tests and embedding
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server
func (a *API) Start(addr string) error {
	a.serverMu.Lock()
	select {
	case <-a.stopCh:
		a.serverMu.Unlock()
		return http.ErrServerClosed
	default:
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.server = srv
	a.serverMu.Unlock()
	return srv.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.serverMu.Lock()
	a.stopOnce.Do(func() { close(a.stopCh) })
	srv := a.server
	a.serverMu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
