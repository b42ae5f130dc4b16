package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"trafficslice/core"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var memoryDBCounter atomic.Int64

func fixtureAlerts() []core.Alert {
	return []core.Alert{
		{AlertName: "Data exfil", Message: "large upload", ApplicationFrom: "AppA", DestinationDomain: "files.example.com", Type: "exfiltration", Severity: 5, Timestamp: "2024-01-15T10:00:00Z"},
		{AlertName: "Beacon", Message: "periodic callback", ApplicationFrom: "AppA", DestinationDomain: "c2.example.net", Type: "beaconing", Severity: 4, Timestamp: "2024-01-15T11:30:00Z"},
		{AlertName: "Odd port", Message: "", ApplicationFrom: "AppA", DestinationDomain: "db.internal", Type: "policy", Severity: 2, Timestamp: "2024-01-16T09:00:00Z"},
		{AlertName: "Beacon", Message: "periodic callback", ApplicationFrom: "AppB", DestinationDomain: "c2.example.net", Type: "beaconing", Severity: 3, Timestamp: "2024-01-16T12:00:00Z"},
		{AlertName: "Scan", Message: "port sweep", ApplicationFrom: "AppB", DestinationDomain: "db.internal", Type: "policy", Severity: 1, Timestamp: "2024-02-01T08:00:00Z"},
	}
}

// newMemorySQLite returns a seeded private in-memory database
func newMemorySQLite(t *testing.T) *SQLite {
	t.Helper()
	name := fmt.Sprintf("memory:storage_test_%d", memoryDBCounter.Add(1))
	db, err := NewSQLite(name, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.SeedAlerts(ctx, fixtureAlerts()))
	return db
}
