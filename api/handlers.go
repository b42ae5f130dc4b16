package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trafficslice/core"
	"trafficslice/metrics"
	"trafficslice/search"
)

// getAlerts godoc
//
//	GET /api/alerts
//	Query: alert_name, message, application_from, destination_domain, type,
//	severity, minSeverity, minTimestamp, offset, pageSize (or limit, cursor),
//	orderBy, order
//	200: []core.Alert  400: invalid parameters  500: store failure
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := a.parseAlertsRequest(r.URL.Query())
	if err != nil {
		a.rejectRequest(w, r, err)
		return
	}

	alerts, err := a.alerts.GetAlerts(r.Context(), filter)
	if err != nil {
		a.writeQueryError(w, r, "Failed to fetch alerts", err)
		return
	}
	if alerts == nil {
		alerts = []core.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// getAlertAnalytics godoc
//
//	GET /api/analytics/alerts
//	Query: the alert predicates plus timeGroupBy, dimensionGroupBy,
//	startDate, endDate
//	200: []core.AnalyticsDataPoint  400: invalid parameters  500: store failure
func (a *API) getAlertAnalytics(w http.ResponseWriter, r *http.Request) {
	filter, err := a.parseAnalyticsRequest(r.URL.Query())
	if err != nil {
		a.rejectRequest(w, r, err)
		return
	}

	points, err := a.analytics.GetAlertAnalytics(r.Context(), filter)
	if err != nil {
		a.writeQueryError(w, r, "Failed to fetch alert analytics", err)
		return
	}
	if points == nil {
		points = []core.AnalyticsDataPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (a *API) getApplications(w http.ResponseWriter, r *http.Request) {
	a.writeLookup(w, r, "Failed to fetch applications", a.lookups.ListApplications)
}

func (a *API) getDestinations(w http.ResponseWriter, r *http.Request) {
	a.writeLookup(w, r, "Failed to fetch destinations", a.lookups.ListDestinations)
}

func (a *API) getAlertTypes(w http.ResponseWriter, r *http.Request) {
	a.writeLookup(w, r, "Failed to fetch alert types", a.lookups.ListAlertTypes)
}

func (a *API) writeLookup(w http.ResponseWriter, r *http.Request, failure string, list func(context.Context) ([]string, error)) {
	values, err := list(r.Context())
	if err != nil {
		a.writeQueryError(w, r, failure, err)
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, values)
}

// getAlertCount returns the unfiltered number of stored alerts
func (a *API) getAlertCount(w http.ResponseWriter, r *http.Request) {
	count, err := a.lookups.GetTotalAlertCount(r.Context())
	if err != nil {
		a.writeQueryError(w, r, "Failed to count alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// healthCheck reports liveness and, when a store is attached, readiness
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health.Ping(ctx); err != nil {
			a.logger.Warnw("Health check failed", "error", err)
			status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// rejectRequest answers a request that failed boundary validation
func (a *API) rejectRequest(w http.ResponseWriter, r *http.Request, err error) {
	metrics.RejectedRequests.WithLabelValues("invalid_parameters").Inc()
	a.logger.Warnw("Rejected request",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"path", r.URL.Path,
		"error", err)
	writeError(w, http.StatusBadRequest, "Invalid query parameters: "+err.Error(), nil, nil)
}

// writeQueryError maps service errors to responses. Composition errors
// are the caller's fault; everything else is reported without detail.
func (a *API) writeQueryError(w http.ResponseWriter, r *http.Request, failure string, err error) {
	if search.IsCompositionError(err) || errors.Is(err, core.ErrMixedPagination) {
		a.rejectRequest(w, r, err)
		return
	}
	if errors.Is(err, context.Canceled) {
		a.logger.Infow("Request cancelled by client",
			"request_id", GetRequestIDOrDefault(r.Context()),
			"path", r.URL.Path)
		return
	}
	a.logger.Errorw(failure,
		"request_id", GetRequestIDOrDefault(r.Context()),
		"path", r.URL.Path,
		"error", err)
	writeError(w, http.StatusInternalServerError, failure, nil, nil)
}
