package accessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"accessionreport/pkg/sqlquery"
)

// Derived column names.
const (
	ColumnLocation           = "location"
	ColumnProcessingStatus   = "processing_status"
	ColumnProcessingPriority = "processing_priority"
	ColumnClassifications    = "classifications"
	ColumnExtentNumberType   = "extent_number_type"
	ColumnDonorName          = "donor_name"
	ColumnDonorNumber        = "donor_number"
)

// Enricher computes one derived column for an accession.
type Enricher interface {
	Column() string
	Enrich(ctx context.Context, accessionID int64) (any, error)
}

// Projector is implemented by enrichers that can be computed inside the
// report query. Expression returns a scalar SQL expression correlated on
// idColumn.
type Projector interface {
	Expression(idColumn string) string
}

// EnricherFunc adapts a function to Enricher.
type EnricherFunc struct {
	Name string
	Fn   func(ctx context.Context, accessionID int64) (any, error)
}

func (e EnricherFunc) Column() string { return e.Name }

func (e EnricherFunc) Enrich(ctx context.Context, accessionID int64) (any, error) {
	return e.Fn(ctx, accessionID)
}

// SubqueryEnricher is a scalar SQL expression over an accession id. Expr
// receives the id operand, either a correlated column or a placeholder.
type SubqueryEnricher struct {
	Name    string
	Expr    func(id string) string
	DB      sqlquery.Querier
	Dialect sqlquery.Dialect
}

func (e SubqueryEnricher) Column() string { return e.Name }

func (e SubqueryEnricher) Expression(idColumn string) string {
	return e.Expr(idColumn)
}

// Enrich evaluates the expression for a single accession.
func (e SubqueryEnricher) Enrich(ctx context.Context, accessionID int64) (any, error) {
	if e.DB == nil {
		return nil, fmt.Errorf("%s: no database", e.Name)
	}
	expr := e.Expr("?")
	args := make([]any, strings.Count(expr, "?"))
	for i := range args {
		args[i] = accessionID
	}
	var out sql.NullString
	if err := e.DB.QueryRowContext(ctx, e.Dialect.Rebind("SELECT "+expr), args...).Scan(&out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if !out.Valid {
		return nil, nil
	}
	return out.String, nil
}

// StoredFunction projects an ArchivesSpace stored function such as
// GetAccessionLocationUserDefined(accession.id).
func StoredFunction(column, function string) SubqueryEnricher {
	return SubqueryEnricher{
		Name: column,
		Expr: func(id string) string { return function + "(" + id + ")" },
	}
}

// StoredFunctionEnrichers returns the derived columns as computed by the
// functions installed on an ArchivesSpace MySQL database.
func StoredFunctionEnrichers() []Enricher {
	return []Enricher{
		StoredFunction(ColumnLocation, "GetAccessionLocationUserDefined"),
		StoredFunction(ColumnProcessingStatus, "GetAccessionProcessingStatus"),
		StoredFunction(ColumnProcessingPriority, "GetAccessionProcessingPriority"),
		StoredFunction(ColumnClassifications, "GetAccessionClassificationsUserDefined"),
		StoredFunction(ColumnExtentNumberType, "GetAccessionExtentNumberType"),
		StoredFunction(ColumnDonorName, "GetAccessionSourceName"),
		StoredFunction(ColumnDonorNumber, "GetAccessionDonorNumbers"),
	}
}

// ListEnricher runs a query keyed by accession id and folds every non-empty
// field of every row into one string. It yields nil when nothing matched.
type ListEnricher struct {
	Name     string
	Query    string
	FieldSep string
	RowSep   string
	DB       sqlquery.Querier
	Dialect  sqlquery.Dialect
}

func (e ListEnricher) Column() string { return e.Name }

func (e ListEnricher) Enrich(ctx context.Context, accessionID int64) (any, error) {
	if e.DB == nil {
		return nil, fmt.Errorf("%s: no database", e.Name)
	}
	args := make([]any, strings.Count(e.Query, "?"))
	for i := range args {
		args[i] = accessionID
	}
	rows, err := e.DB.QueryContext(ctx, e.Dialect.Rebind(e.Query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	var out []string
	for rows.Next() {
		fields := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range fields {
			dest[i] = &fields[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
		var parts []string
		for _, f := range fields {
			if f.Valid && strings.TrimSpace(f.String) != "" {
				parts = append(parts, f.String)
			}
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, e.FieldSep))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return strings.Join(out, e.RowSep), nil
}

// sourceAgents selects the source-role relationships of an accession.
const sourceAgents = "FROM linked_agents_rlshp AS src " +
	"JOIN enumeration_value AS src_role ON src_role.id = src.role_id AND src_role.value = 'source' " +
	"JOIN enumeration AS src_enum ON src_enum.id = src_role.enumeration_id AND src_enum.name = 'linked_agent_role' "

// DefaultEnrichers computes the derived columns from the bundled schema.
// Scalar columns are projected into the report query; list columns run per
// row.
func DefaultEnrichers(db sqlquery.Querier, dialect sqlquery.Dialect) []Enricher {
	scalar := func(name string, expr func(string) string) SubqueryEnricher {
		return SubqueryEnricher{Name: name, Expr: expr, DB: db, Dialect: dialect}
	}
	list := func(name, query, fieldSep, rowSep string) ListEnricher {
		return ListEnricher{Name: name, Query: query, FieldSep: fieldSep, RowSep: rowSep, DB: db, Dialect: dialect}
	}
	cmValue := func(column string) func(string) string {
		return func(id string) string {
			return "(SELECT cm_value.value FROM collection_management AS cm " +
				"JOIN enumeration_value AS cm_value ON cm_value.id = cm." + column + " " +
				"WHERE cm.accession_id = " + id + " ORDER BY cm.id LIMIT 1)"
		}
	}
	return []Enricher{
		scalar(ColumnLocation, func(id string) string {
			return "(SELECT ud.string_1 FROM user_defined AS ud WHERE ud.accession_id = " + id + " ORDER BY ud.id LIMIT 1)"
		}),
		scalar(ColumnProcessingStatus, cmValue("processing_status_id")),
		scalar(ColumnProcessingPriority, cmValue("processing_priority_id")),
		list(ColumnClassifications,
			"SELECT c1.value, c2.value, c3.value FROM user_defined AS ud "+
				"LEFT JOIN enumeration_value AS c1 ON c1.id = ud.enum_1_id "+
				"LEFT JOIN enumeration_value AS c2 ON c2.id = ud.enum_2_id "+
				"LEFT JOIN enumeration_value AS c3 ON c3.id = ud.enum_3_id "+
				"WHERE ud.accession_id = ? ORDER BY ud.id",
			", ", "; "),
		list(ColumnExtentNumberType,
			"SELECT extent.number, extent_type.value FROM extent "+
				"LEFT JOIN enumeration_value AS extent_type ON extent_type.id = extent.extent_type_id "+
				"WHERE extent.accession_id = ? ORDER BY extent.id",
			" ", "; "),
		scalar(ColumnDonorName, func(id string) string {
			return "(SELECT COALESCE(np.sort_name, nf.sort_name, nc.sort_name) " + sourceAgents +
				"LEFT JOIN name_person AS np ON np.agent_person_id = src.agent_person_id " +
				"LEFT JOIN name_family AS nf ON nf.agent_family_id = src.agent_family_id " +
				"LEFT JOIN name_corporate_entity AS nc ON nc.agent_corporate_entity_id = src.agent_corporate_entity_id " +
				"WHERE src.accession_id = " + id + " ORDER BY src.id, np.id, nf.id, nc.id LIMIT 1)"
		}),
		list(ColumnDonorNumber,
			"SELECT dd.number "+sourceAgents+
				"JOIN donor_detail AS dd ON dd.agent_person_id = src.agent_person_id "+
				"OR dd.agent_family_id = src.agent_family_id "+
				"OR dd.agent_corporate_entity_id = src.agent_corporate_entity_id "+
				"WHERE src.accession_id = ? ORDER BY src.id, dd.id",
			"", "; "),
	}
}
