package search

import (
	"testing"

	"trafficslice/core"

	"github.com/stretchr/testify/assert"
)

func TestCompilePredicates_Empty(t *testing.T) {
	p := CompilePredicates(DialectSQLite, core.Criteria{})
	assert.True(t, p.Empty())
	assert.Equal(t, "", p.Where())
	assert.Empty(t, p.Args)
}

func TestCompilePredicates_AllFields(t *testing.T) {
	c := core.Criteria{
		AlertPredicates: core.AlertPredicates{
			AlertName:         "exfil",
			Message:           "upload",
			ApplicationFrom:   "AppA",
			DestinationDomain: "example.com",
			Type:              "file",
			Severity:          5,
			MinSeverity:       4,
			MinTimestamp:      "2024-01-01T00:00:00Z",
		},
		StartDate: "2024-02-01",
		EndDate:   "2024-02-28",
	}

	p := CompilePredicates(DialectSQLite, c)

	assert.Equal(t, []string{
		"alert_name LIKE ?",
		"message LIKE ?",
		"application_from LIKE ?",
		"destination_domain LIKE ?",
		"type LIKE ?",
		"severity = ?",
		"severity >= ?",
		"timestamp >= ?",
		"timestamp >= ?",
		"timestamp <= ?",
	}, p.Clauses)
	assert.Equal(t, []interface{}{
		"%exfil%", "%upload%", "%AppA%", "%example.com%", "%file%",
		5, 4,
		"2024-01-01T00:00:00Z", "2024-02-01", "2024-02-28",
	}, p.Args)
	assert.Equal(t, len(p.Clauses), len(p.Args))
}

func TestCompilePredicates_SeverityAndMinSeverityBothApply(t *testing.T) {
	c := core.Criteria{AlertPredicates: core.AlertPredicates{Severity: 5, MinSeverity: 4}}
	p := CompilePredicates(DialectSQLite, c)
	assert.Equal(t, " WHERE severity = ? AND severity >= ?", p.Where())
	assert.Equal(t, []interface{}{5, 4}, p.Args)
}

func TestCompilePredicates_ZeroValuesSkipped(t *testing.T) {
	c := core.Criteria{AlertPredicates: core.AlertPredicates{Severity: 0, AlertName: "", Type: "dns"}}
	p := CompilePredicates(DialectSQLite, c)
	assert.Equal(t, []string{"type LIKE ?"}, p.Clauses)
}

func TestCompilePredicates_ValuesNeverInterpolated(t *testing.T) {
	hostile := "x' OR '1'='1"
	c := core.Criteria{AlertPredicates: core.AlertPredicates{ApplicationFrom: hostile}}
	p := CompilePredicates(DialectSQLite, c)
	assert.NotContains(t, p.Where(), hostile)
	assert.Equal(t, "%"+hostile+"%", p.Args[0])
}

func TestCompilePredicates_WildcardsPassThrough(t *testing.T) {
	c := core.Criteria{AlertPredicates: core.AlertPredicates{AlertName: "50%_off"}}
	p := CompilePredicates(DialectSQLite, c)
	assert.Equal(t, "%50%_off%", p.Args[0])
}

func TestCompilePredicates_Postgres(t *testing.T) {
	c := core.Criteria{AlertPredicates: core.AlertPredicates{Type: "dns", MinSeverity: 2}}
	p := CompilePredicates(DialectPostgres, c)
	assert.Equal(t, []string{`"type" ILIKE ?`, `"severity" >= ?`}, p.Clauses)
}
