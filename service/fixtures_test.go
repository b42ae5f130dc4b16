package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"trafficslice/core"
	"trafficslice/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var memoryDBCounter atomic.Int64

// sampleAlerts has AppA x3 and AppB x2
func sampleAlerts() []core.Alert {
	return []core.Alert{
		{AlertName: "Data exfil", Message: "large upload", ApplicationFrom: "AppA", DestinationDomain: "files.example.com", Type: "exfiltration", Severity: 5, Timestamp: "2024-01-15T10:00:00Z"},
		{AlertName: "Beacon", Message: "periodic callback", ApplicationFrom: "AppA", DestinationDomain: "c2.example.net", Type: "beaconing", Severity: 4, Timestamp: "2024-01-15T11:30:00Z"},
		{AlertName: "Odd port", Message: "100% of traffic on 8443", ApplicationFrom: "AppA", DestinationDomain: "db.internal", Type: "policy", Severity: 5, Timestamp: "2024-01-16T09:00:00Z"},
		{AlertName: "Beacon", Message: "periodic callback", ApplicationFrom: "AppB", DestinationDomain: "c2.example.net", Type: "beaconing", Severity: 3, Timestamp: "2024-01-16T12:00:00Z"},
		{AlertName: "Scan", Message: "port sweep", ApplicationFrom: "AppB", DestinationDomain: "db.internal", Type: "policy", Severity: 1, Timestamp: "2024-02-01T08:00:00Z"},
	}
}

// generatedAlerts returns n alerts with distinct timestamps
func generatedAlerts(n int) []core.Alert {
	apps := []string{"AppA", "AppB", "AppC"}
	types := []string{"policy", "beaconing", "exfiltration", "scan"}
	alerts := make([]core.Alert, n)
	for i := 0; i < n; i++ {
		alerts[i] = core.Alert{
			AlertName:         fmt.Sprintf("Alert %02d", i),
			Message:           fmt.Sprintf("event %d", i),
			ApplicationFrom:   apps[i%len(apps)],
			DestinationDomain: fmt.Sprintf("host%d.example.com", i%4),
			Type:              types[i%len(types)],
			Severity:          i%5 + 1,
			Timestamp:         fmt.Sprintf("2024-03-%02dT%02d:15:00Z", i%28+1, i%24),
		}
	}
	return alerts
}

// newSeededStore returns a private in-memory SQLite store holding alerts
func newSeededStore(t *testing.T, alerts []core.Alert) *storage.SQLite {
	t.Helper()
	name := fmt.Sprintf("memory:service_test_%d", memoryDBCounter.Add(1))
	db, err := storage.NewSQLite(name, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.SeedAlerts(ctx, alerts))
	return db
}

// matches is a reference implementation of predicate semantics
func matches(a core.Alert, c core.Criteria) bool {
	contains := func(field, want string) bool {
		return want == "" || strings.Contains(strings.ToLower(field), strings.ToLower(want))
	}
	if !contains(a.AlertName, c.AlertName) ||
		!contains(a.Message, c.Message) ||
		!contains(a.ApplicationFrom, c.ApplicationFrom) ||
		!contains(a.DestinationDomain, c.DestinationDomain) ||
		!contains(a.Type, c.Type) {
		return false
	}
	if c.Severity != 0 && a.Severity != c.Severity {
		return false
	}
	if c.MinSeverity != 0 && a.Severity < c.MinSeverity {
		return false
	}
	if c.MinTimestamp != "" && a.Timestamp < c.MinTimestamp {
		return false
	}
	if c.StartDate != "" && a.Timestamp < c.StartDate {
		return false
	}
	if c.EndDate != "" && a.Timestamp > c.EndDate {
		return false
	}
	return true
}

func countMatching(alerts []core.Alert, c core.Criteria) int64 {
	var n int64
	for _, a := range alerts {
		if matches(a, c) {
			n++
		}
	}
	return n
}
