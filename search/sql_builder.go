package search

import (
	"strings"
)

// SQLBuilder is a fluent builder for read-only SELECT statements.
// SECURITY: values are only ever added as parameters; expressions passed to
// Select, GroupBy and OrderBy must come from allow-listed or precompiled
// sources.
type SQLBuilder struct {
	dialect      Dialect
	selectFields []string
	fromTable    string
	whereClauses []string
	params       []interface{}
	groupBy      []string
	orderBy      []string
	limitVal     *int
	offsetVal    *int
}

// NewSQLBuilder creates a new SQL builder for the given dialect
func NewSQLBuilder(d Dialect) *SQLBuilder {
	return &SQLBuilder{
		dialect:      d,
		selectFields: []string{},
		whereClauses: []string{},
		params:       []interface{}{},
	}
}

// Columns adds plain column names to the SELECT list
func (b *SQLBuilder) Columns(columns ...string) *SQLBuilder {
	for _, c := range columns {
		b.selectFields = append(b.selectFields, b.dialect.Ident(c))
	}
	return b
}

// Select adds precompiled expressions to the SELECT list
func (b *SQLBuilder) Select(exprs ...string) *SQLBuilder {
	b.selectFields = append(b.selectFields, exprs...)
	return b
}

// From sets the FROM table
func (b *SQLBuilder) From(table string) *SQLBuilder {
	b.fromTable = table
	return b
}

// Where adds a WHERE condition with parameterized values
func (b *SQLBuilder) Where(condition string, params ...interface{}) *SQLBuilder {
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, params...)
	return b
}

// WherePredicate adds every clause of a compiled predicate
func (b *SQLBuilder) WherePredicate(p Predicate) *SQLBuilder {
	b.whereClauses = append(b.whereClauses, p.Clauses...)
	b.params = append(b.params, p.Args...)
	return b
}

// GroupBy adds GROUP BY expressions
func (b *SQLBuilder) GroupBy(exprs ...string) *SQLBuilder {
	b.groupBy = append(b.groupBy, exprs...)
	return b
}

// OrderBy adds ORDER BY terms
func (b *SQLBuilder) OrderBy(terms ...string) *SQLBuilder {
	b.orderBy = append(b.orderBy, terms...)
	return b
}

// Limit sets the LIMIT clause. The value is bound as a parameter.
func (b *SQLBuilder) Limit(n int) *SQLBuilder {
	b.limitVal = &n
	return b
}

// Offset sets the OFFSET clause. The value is bound as a parameter.
func (b *SQLBuilder) Offset(n int) *SQLBuilder {
	b.offsetVal = &n
	return b
}

// Build constructs the final SQL query string and returns it with parameters
func (b *SQLBuilder) Build() (string, []interface{}) {
	var query strings.Builder
	params := append([]interface{}{}, b.params...)

	if len(b.selectFields) == 0 {
		query.WriteString("SELECT *")
	} else {
		query.WriteString("SELECT ")
		query.WriteString(strings.Join(b.selectFields, ", "))
	}

	if b.fromTable != "" {
		query.WriteString(" FROM ")
		query.WriteString(b.dialect.Ident(b.fromTable))
	}

	if len(b.whereClauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(b.whereClauses, " AND "))
	}

	if len(b.groupBy) > 0 {
		query.WriteString(" GROUP BY ")
		query.WriteString(strings.Join(b.groupBy, ", "))
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limitVal != nil {
		query.WriteString(" LIMIT ?")
		params = append(params, *b.limitVal)
	}

	if b.offsetVal != nil {
		query.WriteString(" OFFSET ?")
		params = append(params, *b.offsetVal)
	}

	return b.dialect.Rebind(query.String()), params
}

// Reset clears the builder state for reuse
func (b *SQLBuilder) Reset() *SQLBuilder {
	b.selectFields = []string{}
	b.fromTable = ""
	b.whereClauses = []string{}
	b.params = []interface{}{}
	b.groupBy = nil
	b.orderBy = nil
	b.limitVal = nil
	b.offsetVal = nil
	return b
}
