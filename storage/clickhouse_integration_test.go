package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"trafficslice/config"
	"trafficslice/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	clickhouseImage       = "clickhouse/clickhouse-server:24.8"
	clickhouseNativePort  = "9000/tcp"
	clickhouseHTTPPort    = "8123/tcp"
	testDatabaseName      = "trafficslice_integration_test"
	containerStartTimeout = 120 * time.Second
)

// setupClickHouseTestContainer starts ClickHouse and returns a connected store
func setupClickHouseTestContainer(t *testing.T) *ClickHouse {
	if testing.Short() {
		t.Skip("skipping ClickHouse integration test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        clickhouseImage,
		ExposedPorts: []string{clickhouseNativePort, clickhouseHTTPPort},
		Env: map[string]string{
			"CLICKHOUSE_DB":                        testDatabaseName,
			"CLICKHOUSE_USER":                      "default",
			"CLICKHOUSE_PASSWORD":                  "testpassword",
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
		},
		WaitingFor: wait.ForHTTP("/").
			WithPort(clickhouseHTTPPort).
			WithStartupTimeout(containerStartTimeout).
			WithResponseMatcher(func(body io.Reader) bool {
				buf, _ := io.ReadAll(body)
				return len(buf) > 0
			}),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start ClickHouse container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	ch, err := NewClickHouse(ctx, config.ClickHouseConfig{
		Addr:        host + ":" + mappedPort.Port(),
		Database:    testDatabaseName,
		Username:    "default",
		Password:    "testpassword",
		MaxPoolSize: 4,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.EnsureSchema(ctx))
	require.NoError(t, ch.SeedAlerts(ctx, fixtureAlerts()))
	return ch
}

func TestClickHouseIntegration_Queries(t *testing.T) {
	ch := setupClickHouseTestContainer(t)
	ctx := context.Background()

	b := search.NewSQLBuilder(search.DialectClickHouse).
		Select("COUNT(*)").
		From("alerts").
		Where("application_from ILIKE ?", "%appa%")
	query, args := b.Build()
	count, err := ch.QueryCount(ctx, query, args)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	grouping, err := search.ResolveGrouping(search.DialectClickHouse, "month", "severity")
	require.NoError(t, err)
	query, args = search.NewSQLBuilder(search.DialectClickHouse).
		Select(grouping.Select...).
		From("alerts").
		GroupBy(grouping.GroupBy...).
		OrderBy(grouping.OrderBy...).
		Build()
	points, err := ch.QueryDataPoints(ctx, query, args)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	require.NotNil(t, points[0].DimensionKey)
	assert.Equal(t, "2024-01", points[0].TimeKey)

	var total int64
	for _, p := range points {
		total += p.Count
	}
	assert.Equal(t, int64(len(fixtureAlerts())), total)

	version, err := ch.GetVersion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}
