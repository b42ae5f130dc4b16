package search

import (
	"strings"

	"trafficslice/core"
)

// Predicate is a compiled WHERE clause: conditions joined with AND and the
// positional arguments they bind, in order.
type Predicate struct {
	Clauses []string
	Args    []interface{}
}

// Empty reports whether the predicate matches every row.
func (p Predicate) Empty() bool {
	return len(p.Clauses) == 0
}

// Where renders " WHERE ..." or the empty string.
func (p Predicate) Where() string {
	if p.Empty() {
		return ""
	}
	return " WHERE " + strings.Join(p.Clauses, " AND ")
}

// substringFields are matched case-insensitively as %value%.
var substringFields = []struct {
	column string
	value  func(core.Criteria) string
}{
	{core.FieldAlertName, func(c core.Criteria) string { return c.AlertName }},
	{core.FieldMessage, func(c core.Criteria) string { return c.Message }},
	{core.FieldApplicationFrom, func(c core.Criteria) string { return c.ApplicationFrom }},
	{core.FieldDestinationDomain, func(c core.Criteria) string { return c.DestinationDomain }},
	{core.FieldType, func(c core.Criteria) string { return c.Type }},
}

// CompilePredicates turns filter criteria into a parameterised predicate.
// Empty strings and zero values are treated as not provided. Pattern
// characters inside substring values are passed through unescaped. Case
// folding follows the dialect's LikeOperator.
func CompilePredicates(d Dialect, c core.Criteria) Predicate {
	var p Predicate
	like := d.LikeOperator()

	for _, f := range substringFields {
		if v := f.value(c); v != "" {
			p.Clauses = append(p.Clauses, d.Ident(f.column)+" "+like+" ?")
			p.Args = append(p.Args, "%"+v+"%")
		}
	}

	severity := d.Ident(core.FieldSeverity)
	if c.Severity != 0 {
		p.Clauses = append(p.Clauses, severity+" = ?")
		p.Args = append(p.Args, c.Severity)
	}
	if c.MinSeverity != 0 {
		p.Clauses = append(p.Clauses, severity+" >= ?")
		p.Args = append(p.Args, c.MinSeverity)
	}

	timestamp := d.Ident(core.FieldTimestamp)
	if c.MinTimestamp != "" {
		p.Clauses = append(p.Clauses, timestamp+" >= ?")
		p.Args = append(p.Args, c.MinTimestamp)
	}
	if c.StartDate != "" {
		p.Clauses = append(p.Clauses, timestamp+" >= ?")
		p.Args = append(p.Args, c.StartDate)
	}
	if c.EndDate != "" {
		p.Clauses = append(p.Clauses, timestamp+" <= ?")
		p.Args = append(p.Args, c.EndDate)
	}

	return p
}
