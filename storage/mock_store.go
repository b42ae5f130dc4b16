package storage

import (
	"context"

	"trafficslice/core"
	"trafficslice/search"

	"github.com/stretchr/testify/mock"
)

// MockStore implements Store for testing. Query methods are recorded with
// testify's mock; Ping and Close always succeed.
type MockStore struct {
	mock.Mock
	dialect search.Dialect
}

// NewMockStore creates a mock that reports dialect d
func NewMockStore(d search.Dialect) *MockStore {
	return &MockStore{dialect: d}
}

func (m *MockStore) Dialect() search.Dialect {
	return m.dialect
}

func (m *MockStore) QueryAlerts(ctx context.Context, query string, args []interface{}) ([]core.Alert, error) {
	ret := m.Called(ctx, query, args)
	alerts, _ := ret.Get(0).([]core.Alert)
	return alerts, ret.Error(1)
}

func (m *MockStore) QueryDataPoints(ctx context.Context, query string, args []interface{}) ([]core.AnalyticsDataPoint, error) {
	ret := m.Called(ctx, query, args)
	points, _ := ret.Get(0).([]core.AnalyticsDataPoint)
	return points, ret.Error(1)
}

func (m *MockStore) QueryCount(ctx context.Context, query string, args []interface{}) (int64, error) {
	ret := m.Called(ctx, query, args)
	count, _ := ret.Get(0).(int64)
	return count, ret.Error(1)
}

func (m *MockStore) QueryStrings(ctx context.Context, query string, args []interface{}) ([]string, error) {
	ret := m.Called(ctx, query, args)
	values, _ := ret.Get(0).([]string)
	return values, ret.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MockStore) Close() error {
	return nil
}
