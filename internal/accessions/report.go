// Package accessions implements the accessions report: a listing of the
// accessions of one repository within a date window, optionally narrowed by
// processing status, processing priority, classification and donor, with
// derived location, classification, extent and donor columns.
package accessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"accessionreport/pkg/datasetapi"
	"accessionreport/pkg/sqlquery"
)

// Output column names not covered by the derived columns.
const (
	ColumnIdentifier         = "identifier"
	ColumnAccessionDate      = "accession_date"
	ColumnContentDescription = "content_description"
	columnAccessionID        = "accession_id"
)

// Columns is the output row shape, in order.
var Columns = []string{
	ColumnIdentifier,
	ColumnDonorName,
	ColumnDonorNumber,
	ColumnAccessionDate,
	ColumnContentDescription,
	ColumnProcessingStatus,
	ColumnProcessingPriority,
	ColumnClassifications,
	ColumnExtentNumberType,
	ColumnLocation,
}

// Report runs the accessions report against a database.
type Report struct {
	DB       sqlquery.Querier
	Composer Composer
	Resolver Resolver
	Logger   *zap.Logger
}

func (r Report) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// Run resolves raw for repoID and executes the report.
func (r Report) Run(ctx context.Context, raw map[string]any, repoID int64) ([]Row, error) {
	p, err := r.Resolver.Resolve(ctx, raw, repoID)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, p)
}

// Execute runs the report for resolved parameters. The result set is read
// completely before derived columns are computed.
func (r Report) Execute(ctx context.Context, p Params) ([]Row, error) {
	log := r.logger()
	if p.DonorUnmatched {
		log.Warn("donor reference matched no agent kind, donor filter not applied",
			zap.Int64("repo_id", p.RepoID))
	}

	sel, err := r.Composer.Compose(ctx, p)
	if err != nil {
		return nil, err
	}
	query, args := sel.Build(r.Composer.Dialect)
	log.Debug("accessions query", zap.String("sql", query), zap.Int("args", len(args)))

	raw, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}

	var pending []Enricher
	for _, e := range r.Composer.Enrichers {
		if _, ok := e.(Projector); !ok {
			pending = append(pending, e)
		}
	}

	out := make([]Row, 0, len(raw))
	for _, row := range raw {
		id, err := toInt64(row[columnAccessionID])
		if err != nil {
			return nil, fmt.Errorf("accession id: %w", err)
		}
		for _, e := range pending {
			v, err := e.Enrich(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("enrich accession %d: %w", id, err)
			}
			row[e.Column()] = v
		}
		row = DecodeRow(row)
		row[ColumnAccessionDate] = FormatDate(row[ColumnAccessionDate])
		out = append(out, project(row))
	}
	log.Debug("accessions report complete", zap.Int("rows", len(out)))
	return out, nil
}

func (r Report) query(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accessions: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan accession: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = plain(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read accessions: %w", err)
	}
	return out, nil
}

func project(row Row) Row {
	out := make(Row, len(Columns))
	for _, c := range Columns {
		out[c] = row[c]
	}
	return out
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// TemplateOptions configures the report template.
type TemplateOptions struct {
	Version string
	// StoredFunctions computes derived columns with the ArchivesSpace
	// stored functions instead of the bundled schema queries.
	StoredFunctions bool
	// EnumFunction, when set, is used to read enumeration values in SQL.
	EnumFunction string
	IDs          IDResolver
}

// Template returns the report as a dataset template.
func Template(opts TemplateOptions) datasetapi.Template {
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	columns := make([]datasetapi.Column, 0, len(Columns))
	for _, c := range Columns {
		typ := "string"
		if c == ColumnAccessionDate {
			typ = "date"
		}
		columns = append(columns, datasetapi.Column{Name: c, Type: typ, Description: columnDescriptions[c]})
	}
	return datasetapi.Template{
		Key:         "accessions",
		Version:     version,
		Title:       "Accessions Report",
		Description: "Displays a list of accession record(s) within a date range, optionally narrowed by processing status, processing priority, classification and donor.",
		Parameters: []datasetapi.Parameter{
			{Name: ParamFrom, Type: datasetapi.TypeDateTime, Description: "Earliest accession date (inclusive). Defaults to 1800-01-01.", Example: "2020-01-01"},
			{Name: ParamTo, Type: datasetapi.TypeDateTime, Description: "Latest accession date (inclusive). Defaults to now.", Example: "2020-12-31 23:59:59"},
			{Name: ParamProcessingStatus, Type: datasetapi.TypeString, Description: `Exact status, "` + NoDefinedValue + `" or "` + AnyDefinedValue + `".`, Example: "completed"},
			{Name: ParamProcessingPriority, Type: datasetapi.TypeString, Description: `Exact priority, "` + NoDefinedValue + `" or "` + AnyDefinedValue + `".`, Example: "high"},
			{Name: ParamClassification, Type: datasetapi.TypeString, Description: "Classification value held in any user defined enumeration slot.", Example: "Maps"},
			{Name: ParamDonor, Type: datasetapi.TypeReference, Description: "Agent reference of the source donor.", Example: map[string]any{"ref": "/agents/people/5"}},
		},
		Columns: columns,
		Metadata: datasetapi.Metadata{
			Source: "archivesspace",
			Tags:   []string{"accessions", "donors"},
			Annotations: map[string]string{
				"uri_suffix": "accessions",
			},
		},
		OutputFormats: []datasetapi.Format{datasetapi.FormatJSON, datasetapi.FormatCSV, datasetapi.FormatHTML},
		Binder:        binder(opts),
	}
}

var columnDescriptions = map[string]string{
	ColumnIdentifier:         "Accession identifier, parts joined by '-'",
	ColumnDonorName:          "Sort name of the source agent",
	ColumnDonorNumber:        "Donor numbers of the source agent",
	ColumnAccessionDate:      "Accession date",
	ColumnContentDescription: "Content description",
	ColumnProcessingStatus:   "Collection management processing status",
	ColumnProcessingPriority: "Collection management processing priority",
	ColumnClassifications:    "User defined classifications",
	ColumnExtentNumberType:   "Extents as number and type",
	ColumnLocation:           "User defined location",
}

func binder(opts TemplateOptions) datasetapi.Binder {
	return func(env datasetapi.Environment) (datasetapi.Runner, error) {
		if env.DB == nil {
			return nil, errors.New("accessions: database required")
		}
		now := env.Now
		if now == nil {
			now = time.Now
		}
		enrichers := DefaultEnrichers(env.DB, env.Dialect)
		if opts.StoredFunctions {
			enrichers = StoredFunctionEnrichers()
		}
		report := Report{
			DB: env.DB,
			Composer: Composer{
				Dialect:   env.Dialect,
				Enums:     SQLEnums{DB: env.DB, Dialect: env.Dialect, Function: opts.EnumFunction},
				Enrichers: enrichers,
			},
			Resolver: Resolver{Now: now, IDs: opts.IDs},
			Logger:   env.Logger,
		}
		return func(ctx context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
			p, err := report.Resolver.Resolve(ctx, req.Parameters, req.Scope.RepoID)
			if err != nil {
				return datasetapi.RunResult{}, err
			}
			rows, err := report.Execute(ctx, p)
			if err != nil {
				return datasetapi.RunResult{}, err
			}
			out := make([]map[string]any, len(rows))
			for i, row := range rows {
				out[i] = row
			}
			meta := map[string]any{
				"repo_id":   p.RepoID,
				"from":      p.From.Format(BoundLayout),
				"to":        p.To.Format(BoundLayout),
				"row_count": len(out),
			}
			if p.DonorUnmatched {
				meta["donor_unmatched"] = true
			}
			return datasetapi.RunResult{Rows: out, Metadata: meta, GeneratedAt: now()}, nil
		}, nil
	}
}
