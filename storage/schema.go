package storage

import (
	"fmt"
	"strings"

	"trafficslice/core"
	"trafficslice/search"
)

// schemaStatements returns the DDL for the alerts relation in dialect d
func schemaStatements(d search.Dialect) []string {
	switch d {
	case search.DialectClickHouse:
		return []string{`
	CREATE TABLE IF NOT EXISTS alerts (
		alert_name String,
		message String DEFAULT '',
		application_from LowCardinality(String),
		destination_domain String,
		type LowCardinality(String),
		severity Int64,
		timestamp String,
		INDEX idx_severity severity TYPE set(0) GRANULARITY 1,
		INDEX idx_application_from application_from TYPE bloom_filter(0.01) GRANULARITY 1
	) ENGINE = MergeTree()
	ORDER BY (timestamp, severity)
	SETTINGS index_granularity = 8192
	`}
	default:
		q := func(name string) string { return d.Ident(name) }
		return []string{
			fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		%s TEXT NOT NULL,
		%s TEXT NOT NULL DEFAULT '',
		%s TEXT NOT NULL,
		%s TEXT NOT NULL,
		%s TEXT NOT NULL,
		%s INTEGER NOT NULL CHECK (%s BETWEEN %d AND %d),
		%s TEXT NOT NULL
	)`, q(core.AlertsTable),
				q(core.FieldAlertName), q(core.FieldMessage), q(core.FieldApplicationFrom),
				q(core.FieldDestinationDomain), q(core.FieldType),
				q(core.FieldSeverity), q(core.FieldSeverity), core.MinSeverity, core.MaxSeverity,
				q(core.FieldTimestamp)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON %s(%s)", q(core.AlertsTable), q(core.FieldTimestamp)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_alerts_severity ON %s(%s)", q(core.AlertsTable), q(core.FieldSeverity)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_alerts_application ON %s(%s)", q(core.AlertsTable), q(core.FieldApplicationFrom)),
		}
	}
}

// insertAlertSQL returns a single-row insert statement with placeholders
// in core.AlertFields order.
func insertAlertSQL(d search.Dialect) string {
	cols := make([]string, len(core.AlertFields))
	marks := make([]string, len(core.AlertFields))
	for i, f := range core.AlertFields {
		cols[i] = d.Ident(f)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Ident(core.AlertsTable), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return d.Rebind(query)
}

// alertValues returns the column values of a in core.AlertFields order
func alertValues(a core.Alert) []interface{} {
	return []interface{}{
		a.AlertName,
		a.Message,
		a.ApplicationFrom,
		a.DestinationDomain,
		a.Type,
		a.Severity,
		a.Timestamp,
	}
}

// validateAlerts checks fixture rows before they are written
func validateAlerts(alerts []core.Alert) error {
	for i, a := range alerts {
		if a.AlertName == "" {
			return fmt.Errorf("%w: row %d: alert_name is required", ErrInvalidAlert, i)
		}
		if !core.ValidSeverity(a.Severity) {
			return fmt.Errorf("%w: row %d: severity %d out of range [%d, %d]",
				ErrInvalidAlert, i, a.Severity, core.MinSeverity, core.MaxSeverity)
		}
		if a.Timestamp == "" {
			return fmt.Errorf("%w: row %d: timestamp is required", ErrInvalidAlert, i)
		}
	}
	return nil
}
