package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLBuilder_BasicQuery tests basic SELECT query construction
func TestSQLBuilder_BasicQuery(t *testing.T) {
	query, params := NewSQLBuilder(DialectSQLite).From("alerts").Build()

	assert.Equal(t, "SELECT * FROM alerts", query)
	assert.Empty(t, params, "Basic query should have no parameters")
}

// TestSQLBuilder_Columns tests SELECT with plain columns
func TestSQLBuilder_Columns(t *testing.T) {
	query, _ := NewSQLBuilder(DialectSQLite).Columns("alert_name", "severity").From("alerts").Build()
	assert.Equal(t, "SELECT alert_name, severity FROM alerts", query)

	query, _ = NewSQLBuilder(DialectPostgres).Columns("alert_name", "timestamp").From("alerts").Build()
	assert.Equal(t, `SELECT "alert_name", "timestamp" FROM "alerts"`, query)
}

// TestSQLBuilder_WhereLimitOffset tests that limit and offset are bound after where args
func TestSQLBuilder_WhereLimitOffset(t *testing.T) {
	query, params := NewSQLBuilder(DialectSQLite).
		Columns("alert_name").
		From("alerts").
		Where("severity = ?", 5).
		Where("type LIKE ?", "%dns%").
		OrderBy("severity DESC", "timestamp DESC").
		Limit(10).
		Offset(20).
		Build()

	assert.Equal(t, "SELECT alert_name FROM alerts WHERE severity = ? AND type LIKE ? ORDER BY severity DESC, timestamp DESC LIMIT ? OFFSET ?", query)
	require.Len(t, params, 4)
	assert.Equal(t, []interface{}{5, "%dns%", 10, 20}, params)
}

// TestSQLBuilder_GroupBy tests GROUP BY rendering
func TestSQLBuilder_GroupBy(t *testing.T) {
	query, params := NewSQLBuilder(DialectSQLite).
		Select("COUNT(*) AS count", "type AS dimension_key").
		From("alerts").
		GroupBy("type").
		OrderBy("count DESC").
		Build()

	assert.Equal(t, "SELECT COUNT(*) AS count, type AS dimension_key FROM alerts GROUP BY type ORDER BY count DESC", query)
	assert.Empty(t, params)
}

// TestSQLBuilder_PostgresRebind tests positional placeholder rewriting
func TestSQLBuilder_PostgresRebind(t *testing.T) {
	query, params := NewSQLBuilder(DialectPostgres).
		Select("COUNT(*)").
		From("alerts").
		WherePredicate(Predicate{Clauses: []string{`"severity" = ?`, `"type" ILIKE ?`}, Args: []interface{}{3, "%x%"}}).
		Limit(5).
		Build()

	assert.Equal(t, `SELECT COUNT(*) FROM "alerts" WHERE "severity" = $1 AND "type" ILIKE $2 LIMIT $3`, query)
	assert.Equal(t, []interface{}{3, "%x%", 5}, params)
}

// TestSQLBuilder_BuildIsRepeatable ensures Build does not accumulate limit params
func TestSQLBuilder_BuildIsRepeatable(t *testing.T) {
	b := NewSQLBuilder(DialectSQLite).From("alerts").Where("severity = ?", 1).Limit(3)
	_, first := b.Build()
	_, second := b.Build()
	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

// TestSQLBuilder_Reset tests builder reuse
func TestSQLBuilder_Reset(t *testing.T) {
	b := NewSQLBuilder(DialectSQLite).Columns("type").From("alerts").Where("severity = ?", 1).Limit(3)
	query, params := b.Reset().From("alerts").Build()
	assert.Equal(t, "SELECT * FROM alerts", query)
	assert.Empty(t, params)
}
