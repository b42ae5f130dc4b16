package search

import (
	"fmt"
	"strconv"
	"strings"

	"trafficslice/core"
)

// Dialect selects the SQL flavour a query is rendered in.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectPostgres   Dialect = "postgres"
	DialectClickHouse Dialect = "clickhouse"
)

// ParseDialect maps a store driver name to its dialect.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case DialectSQLite, DialectPostgres, DialectClickHouse:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

// Ident renders a column or table name. Names outside [A-Za-z0-9_] are
// quoted with embedded quotes doubled.
func (d Dialect) Ident(name string) string {
	safe := name != ""
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			safe = false
			break
		}
	}
	if safe && d != DialectPostgres {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// LikeOperator returns the case-insensitive pattern match operator.
// SQLite's LIKE folds case for ASCII letters only, so non-ASCII substring
// filters stay case-sensitive on that backend.
func (d Dialect) LikeOperator() string {
	if d == DialectSQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var timeBucketFormats = map[Dialect]map[core.TimeGroupBy]string{
	DialectSQLite: {
		core.TimeGroupByDay:   "strftime('%Y-%m-%d', timestamp)",
		core.TimeGroupByMonth: "strftime('%Y-%m', timestamp)",
		core.TimeGroupByHour:  "strftime('%Y-%m-%d %H:00', timestamp)",
	},
	DialectPostgres: {
		core.TimeGroupByDay:   `to_char(CAST("timestamp" AS timestamptz) AT TIME ZONE 'UTC', 'YYYY-MM-DD')`,
		core.TimeGroupByMonth: `to_char(CAST("timestamp" AS timestamptz) AT TIME ZONE 'UTC', 'YYYY-MM')`,
		core.TimeGroupByHour:  `to_char(CAST("timestamp" AS timestamptz) AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:00')`,
	},
	DialectClickHouse: {
		core.TimeGroupByDay:   "formatDateTime(parseDateTimeBestEffort(timestamp, 'UTC'), '%Y-%m-%d')",
		core.TimeGroupByMonth: "formatDateTime(parseDateTimeBestEffort(timestamp, 'UTC'), '%Y-%m')",
		core.TimeGroupByHour:  "formatDateTime(parseDateTimeBestEffort(timestamp, 'UTC'), '%Y-%m-%d %H:00')",
	},
}

// TimeBucket returns the expression truncating timestamp to t.
func (d Dialect) TimeBucket(t core.TimeGroupBy) (string, error) {
	exprs, ok := timeBucketFormats[d]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, d)
	}
	expr, ok := exprs[t]
	if !ok {
		return "", fmt.Errorf("%w: timeGroupBy %q", ErrInvalidGrouping, t)
	}
	return expr, nil
}

// TextCast renders an integer column as text.
func (d Dialect) TextCast(column string) string {
	if d == DialectClickHouse {
		return "toString(" + d.Ident(column) + ")"
	}
	return "CAST(" + d.Ident(column) + " AS TEXT)"
}

// NullText is a typed NULL string literal.
func (d Dialect) NullText() string {
	switch d {
	case DialectPostgres:
		return "CAST(NULL AS TEXT)"
	case DialectClickHouse:
		return "CAST(NULL, 'Nullable(String)')"
	default:
		return "NULL"
	}
}
