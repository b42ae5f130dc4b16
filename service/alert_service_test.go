package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"trafficslice/core"
	"trafficslice/search"
	"trafficslice/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newAlertService(t *testing.T, alerts []core.Alert) *AlertQueryService {
	return NewAlertQueryService(newSeededStore(t, alerts), zaptest.NewLogger(t).Sugar(), 0)
}

func isDefaultOrdered(alerts []core.Alert) bool {
	return sort.SliceIsSorted(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return alerts[i].Timestamp > alerts[j].Timestamp
	})
}

func TestNewAlertQueryService_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewAlertQueryService(nil, zap.NewNop().Sugar(), 0) })
	assert.Panics(t, func() { NewAlertQueryService(storage.NewMockStore(search.DialectSQLite), nil, 0) })
}

func TestGetAlerts_ApplicationFilter(t *testing.T) {
	svc := newAlertService(t, sampleAlerts())

	filter := core.NewAlertFilter()
	filter.ApplicationFrom = "AppA"

	alerts, err := svc.GetAlerts(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.Equal(t, "AppA", a.ApplicationFrom)
	}
	assert.True(t, isDefaultOrdered(alerts))
	// Equal severities fall back to newest first
	assert.Equal(t, "Odd port", alerts[0].AlertName)
	assert.Equal(t, "Data exfil", alerts[1].AlertName)
}

func TestGetAlerts_SubstringIsCaseInsensitive(t *testing.T) {
	svc := newAlertService(t, sampleAlerts())

	alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{
		AlertPredicates: core.AlertPredicates{DestinationDomain: "EXAMPLE"},
	})
	require.NoError(t, err)
	assert.Len(t, alerts, 3)
}

func TestGetAlerts_SeverityAndMinSeverityCombine(t *testing.T) {
	svc := newAlertService(t, sampleAlerts())

	filter := core.NewAlertFilter()
	filter.Severity = 5
	filter.MinSeverity = 4
	alerts, err := svc.GetAlerts(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, 5, a.Severity)
	}

	// Contradictory constraints yield nothing rather than one overriding the other
	filter.Severity = 3
	alerts, err = svc.GetAlerts(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetAlerts_EveryRowSatisfiesPredicates(t *testing.T) {
	data := append(sampleAlerts(), generatedAlerts(30)...)
	svc := newAlertService(t, data)

	filters := []core.AlertPredicates{
		{},
		{Type: "policy"},
		{AlertName: "alert 1"},
		{ApplicationFrom: "appc", MinSeverity: 3},
		{DestinationDomain: "host2", MinTimestamp: "2024-03-10"},
		{Message: "callback", Severity: 4},
	}
	for _, p := range filters {
		filter := &core.AlertFilter{AlertPredicates: p, PageSize: 1000}
		alerts, err := svc.GetAlerts(context.Background(), filter)
		require.NoError(t, err)

		c := filter.Criteria()
		for _, a := range alerts {
			assert.True(t, matches(a, c), "row %+v violates %+v", a, p)
		}
		assert.Equal(t, countMatching(data, c), int64(len(alerts)), "filter %+v", p)
	}
}

func TestGetAlerts_DefaultOrdering(t *testing.T) {
	svc := newAlertService(t, generatedAlerts(25))

	alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 25)
	assert.True(t, isDefaultOrdered(alerts))
}

func TestGetAlerts_ExplicitZeroPageSize(t *testing.T) {
	svc := newAlertService(t, generatedAlerts(5))

	filter := core.NewAlertFilter()
	filter.SetPageSize(0)
	query, args, err := svc.BuildAlertsQuery(filter)
	require.NoError(t, err)
	assert.Contains(t, query, "LIMIT ?")
	assert.Equal(t, 0, args[len(args)-2])

	alerts, err := svc.GetAlerts(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetAlerts_SQLiteCaseFoldingIsASCIIOnly(t *testing.T) {
	svc := newAlertService(t, []core.Alert{
		{AlertName: "a", ApplicationFrom: "Billing", DestinationDomain: "x", Type: "t", Severity: 2, Timestamp: "2024-01-15T10:00:00Z"},
		{AlertName: "b", ApplicationFrom: "Écluse", DestinationDomain: "x", Type: "t", Severity: 2, Timestamp: "2024-01-15T11:00:00Z"},
	})

	tests := []struct {
		application string
		want        int
	}{
		{"BILL", 1},
		{"Écl", 1},
		{"écl", 0},
	}
	for _, tt := range tests {
		t.Run(tt.application, func(t *testing.T) {
			alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{
				AlertPredicates: core.AlertPredicates{ApplicationFrom: tt.application},
			})
			require.NoError(t, err)
			assert.Len(t, alerts, tt.want)
		})
	}
}

func TestGetAlerts_ExplicitOrdering(t *testing.T) {
	svc := newAlertService(t, sampleAlerts())

	alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{
		OrderBy: core.FieldAlertName,
		Order:   "ASC",
	})
	require.NoError(t, err)
	require.Len(t, alerts, 5)

	names := make([]string, len(alerts))
	for i, a := range alerts {
		names[i] = a.AlertName
	}
	assert.Equal(t, []string{"Beacon", "Beacon", "Data exfil", "Odd port", "Scan"}, names)
	// Tie on alert_name broken by timestamp DESC
	assert.Equal(t, "AppB", alerts[0].ApplicationFrom)
}

func TestGetAlerts_PagesAreDisjointAndContiguous(t *testing.T) {
	svc := newAlertService(t, generatedAlerts(25))
	ctx := context.Background()

	all, err := svc.GetAlerts(ctx, &core.AlertFilter{PageSize: 100})
	require.NoError(t, err)
	require.Len(t, all, 25)

	var paged []core.Alert
	for offset := 0; offset < 30; offset += 10 {
		page, err := svc.GetAlerts(ctx, &core.AlertFilter{Offset: offset, PageSize: 10})
		require.NoError(t, err)
		paged = append(paged, page...)
	}
	assert.Equal(t, all, paged)
}

func TestGetAlerts_MaxPageSizeCap(t *testing.T) {
	svc := NewAlertQueryService(newSeededStore(t, generatedAlerts(25)), zap.NewNop().Sugar(), 7)

	alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, alerts, 7)
}

func TestGetAlerts_NilFilterUsesDefaults(t *testing.T) {
	store := storage.NewMockStore(search.DialectSQLite)
	store.On("QueryAlerts", mock.Anything,
		"SELECT alert_name, message, application_from, destination_domain, type, severity, timestamp FROM alerts ORDER BY severity DESC, timestamp DESC LIMIT ? OFFSET ?",
		[]interface{}{core.MaxAlerts, 0}).
		Return([]core.Alert{}, nil)

	svc := NewAlertQueryService(store, zap.NewNop().Sugar(), 0)
	alerts, err := svc.GetAlerts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	store.AssertExpectations(t)
}

func TestGetAlerts_RejectsUnknownOrderBy(t *testing.T) {
	store := storage.NewMockStore(search.DialectSQLite)
	svc := NewAlertQueryService(store, zap.NewNop().Sugar(), 0)

	for _, orderBy := range []string{"id", "severity; DROP TABLE alerts", "SEVERITY"} {
		_, err := svc.GetAlerts(context.Background(), &core.AlertFilter{OrderBy: orderBy})
		assert.ErrorIs(t, err, search.ErrInvalidOrderBy, orderBy)
	}

	_, err := svc.GetAlerts(context.Background(), &core.AlertFilter{Order: "sideways"})
	assert.ErrorIs(t, err, search.ErrInvalidOrder)

	_, err = svc.GetAlerts(context.Background(), &core.AlertFilter{Offset: -1})
	assert.ErrorIs(t, err, search.ErrInvalidPagination)

	store.AssertNotCalled(t, "QueryAlerts", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetAlerts_StoreErrorIsWrapped(t *testing.T) {
	boom := errors.New("database is locked")
	store := storage.NewMockStore(search.DialectSQLite)
	store.On("QueryAlerts", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	svc := NewAlertQueryService(store, zap.NewNop().Sugar(), 0)
	_, err := svc.GetAlerts(context.Background(), core.NewAlertFilter())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), StageAlertFetch)
	assert.False(t, search.IsCompositionError(err))
}

func TestGetAlerts_WildcardsAreNotEscaped(t *testing.T) {
	svc := newAlertService(t, sampleAlerts())

	// "_" matches any single character, so every non-empty message matches
	alerts, err := svc.GetAlerts(context.Background(), &core.AlertFilter{
		AlertPredicates: core.AlertPredicates{Message: "_"},
	})
	require.NoError(t, err)
	assert.Len(t, alerts, 5)
}

func TestBuildAlertsQuery_Postgres(t *testing.T) {
	svc := NewAlertQueryService(storage.NewMockStore(search.DialectPostgres), zap.NewNop().Sugar(), 0)

	query, args, err := svc.BuildAlertsQuery(&core.AlertFilter{
		AlertPredicates: core.AlertPredicates{Type: "policy", MinSeverity: 2},
		OrderBy:         core.FieldTimestamp,
		Order:           "asc",
		PageSize:        20,
		Offset:          40,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "alert_name", "message", "application_from", "destination_domain", "type", "severity", "timestamp" FROM "alerts" WHERE "type" ILIKE $1 AND "severity" >= $2 ORDER BY "timestamp" ASC, "timestamp" DESC LIMIT $3 OFFSET $4`,
		query)
	assert.Equal(t, []interface{}{"%policy%", 2, 20, 40}, args)
}
