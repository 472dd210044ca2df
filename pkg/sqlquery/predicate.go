package sqlquery

import "strings"

// Predicate is a boolean SQL fragment using `?` placeholders together with
// its arguments in placeholder order.
type Predicate struct {
	SQL  string
	Args []any
}

// Expr builds a predicate from raw SQL.
func Expr(sql string, args ...any) Predicate {
	return Predicate{SQL: sql, Args: args}
}

// Eq matches column = value.
func Eq(column string, value any) Predicate {
	return Predicate{SQL: column + " = ?", Args: []any{value}}
}

// IsNull matches rows where column has no value.
func IsNull(column string) Predicate {
	return Predicate{SQL: column + " IS NULL"}
}

// NotNull matches rows where column has a value.
func NotNull(column string) Predicate {
	return Predicate{SQL: column + " IS NOT NULL"}
}

// Between matches lo <= column <= hi.
func Between(column string, lo, hi any) Predicate {
	return Predicate{SQL: column + " BETWEEN ? AND ?", Args: []any{lo, hi}}
}

// Or joins predicates with OR inside a single parenthesised group.
func Or(preds ...Predicate) Predicate {
	return combine(" OR ", preds)
}

// And joins predicates with AND inside a single parenthesised group.
func And(preds ...Predicate) Predicate {
	return combine(" AND ", preds)
}

func combine(op string, preds []Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		parts = append(parts, p.SQL)
		args = append(args, p.Args...)
	}
	return Predicate{SQL: "(" + strings.Join(parts, op) + ")", Args: args}
}
