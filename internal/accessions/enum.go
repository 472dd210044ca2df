package accessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"accessionreport/pkg/sqlquery"
)

// ErrEnumValueMissing is returned when an enumeration has no such value.
var ErrEnumValueMissing = errors.New("enumeration value not found")

// EnumLookup resolves controlled vocabulary values.
type EnumLookup interface {
	// ValueID returns the enumeration_value id of value within enumeration.
	ValueID(ctx context.Context, enumeration, value string) (int64, error)
	// ValueExpr returns an SQL expression yielding the value text for the
	// enumeration_value id held in column.
	ValueExpr(column string) string
}

// SQLEnums looks enumerations up in the enumeration tables. When Function is
// set (GetEnumValue on an ArchivesSpace MySQL database) ValueExpr calls it
// instead of using a subquery.
type SQLEnums struct {
	DB       sqlquery.Querier
	Dialect  sqlquery.Dialect
	Function string
}

func (e SQLEnums) ValueID(ctx context.Context, enumeration, value string) (int64, error) {
	query, args := sqlquery.From("enumeration_value").
		Column("enumeration_value.id", "").
		Join(sqlquery.InnerJoin, "enumeration", "", sqlquery.Expr("enumeration.id = enumeration_value.enumeration_id")).
		Where(sqlquery.Eq("enumeration.name", enumeration), sqlquery.Eq("enumeration_value.value", value)).
		Build(e.Dialect)

	var id int64
	if err := e.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s/%s: %w", enumeration, value, ErrEnumValueMissing)
		}
		return 0, fmt.Errorf("lookup %s/%s: %w", enumeration, value, err)
	}
	return id, nil
}

func (e SQLEnums) ValueExpr(column string) string {
	if e.Function != "" {
		return e.Function + "(" + column + ")"
	}
	return "(SELECT value FROM enumeration_value WHERE enumeration_value.id = " + column + ")"
}
