package sqlquery

import "strings"

// JoinKind selects the join operator.
type JoinKind string

const (
	InnerJoin JoinKind = "JOIN"
	LeftJoin  JoinKind = "LEFT OUTER JOIN"
)

// Join is a single joined table. On predicates are ANDed.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    []Predicate
}

// Select is a SELECT statement under construction. Filters are ANDed in the
// order they were added.
type Select struct {
	Columns []string
	From    string
	Joins   []Join
	Filters []Predicate
	GroupBy []string
	OrderBy []string
}

// From starts a statement anchored on table.
func From(table string) *Select {
	return &Select{From: table}
}

// Column appends a projected expression, optionally aliased.
func (s *Select) Column(expr, alias string) *Select {
	if alias != "" {
		expr += " AS " + alias
	}
	s.Columns = append(s.Columns, expr)
	return s
}

// Join appends a join of the given kind.
func (s *Select) Join(kind JoinKind, table, alias string, on ...Predicate) *Select {
	s.Joins = append(s.Joins, Join{Kind: kind, Table: table, Alias: alias, On: on})
	return s
}

// Where narrows the statement by one or more predicates.
func (s *Select) Where(preds ...Predicate) *Select {
	s.Filters = append(s.Filters, preds...)
	return s
}

// Group appends GROUP BY expressions.
func (s *Select) Group(exprs ...string) *Select {
	s.GroupBy = append(s.GroupBy, exprs...)
	return s
}

// Order appends ORDER BY expressions.
func (s *Select) Order(exprs ...string) *Select {
	s.OrderBy = append(s.OrderBy, exprs...)
	return s
}

// Build renders the statement for dialect and returns the arguments in
// placeholder order: join conditions first, then filters.
func (s *Select) Build(d Dialect) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(s.From)

	for _, j := range s.Joins {
		b.WriteString(" ")
		b.WriteString(string(j.Kind))
		b.WriteString(" ")
		b.WriteString(j.Table)
		if j.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(j.Alias)
		}
		if len(j.On) > 0 {
			b.WriteString(" ON ")
			for i, p := range j.On {
				if i > 0 {
					b.WriteString(" AND ")
				}
				b.WriteString(p.SQL)
				args = append(args, p.Args...)
			}
		}
	}

	if len(s.Filters) > 0 {
		b.WriteString(" WHERE ")
		for i, p := range s.Filters {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(p.SQL)
			args = append(args, p.Args...)
		}
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.OrderBy, ", "))
	}
	return d.Rebind(b.String()), args
}
