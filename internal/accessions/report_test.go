package accessions

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	msqlite "modernc.org/sqlite"

	"accessionreport/pkg/datasetapi"
	"accessionreport/pkg/sqlquery"
)

func run(t *testing.T, r Report, raw map[string]any) []Row {
	t.Helper()
	rows, err := r.Run(context.Background(), raw, 2)
	require.NoError(t, err)
	return rows
}

func TestReportDefaultsListRepositoryInOrder(t *testing.T) {
	rows := run(t, newReport(seededDB(t)), nil)
	require.Equal(t, []string{"2020-001", "2020-3", "2019-010", "2021-7"}, identifiers(rows))
	for _, row := range rows {
		require.Len(t, row, len(Columns))
	}
}

func TestReportRowContents(t *testing.T) {
	rows := run(t, newReport(seededDB(t)), map[string]any{ParamFrom: "2020-01-01", ParamTo: "2020-12-31 23:59:59"})
	want := []Row{
		{
			ColumnIdentifier:         "2020-001",
			ColumnDonorName:          "Doe, Jane",
			ColumnDonorNumber:        "D-100; D-101",
			ColumnAccessionDate:      "2020-03-15",
			ColumnContentDescription: "Letters",
			ColumnProcessingStatus:   "completed",
			ColumnProcessingPriority: "high",
			ColumnClassifications:    "Photographs",
			ColumnExtentNumberType:   "2 cubic_feet; 0.5 linear_feet",
			ColumnLocation:           "Shelf A",
		},
		{
			ColumnIdentifier:         "2020-3",
			ColumnDonorName:          "Roe, Rick",
			ColumnDonorNumber:        nil,
			ColumnAccessionDate:      "2020-06-01",
			ColumnContentDescription: "Maps of campus",
			ColumnProcessingStatus:   "in_progress",
			ColumnProcessingPriority: nil,
			ColumnClassifications:    "Maps",
			ColumnExtentNumberType:   "1 linear_feet",
			ColumnLocation:           "Map case",
		},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReportDateBoundsAreInclusive(t *testing.T) {
	r := newReport(seededDB(t))
	rows := run(t, r, map[string]any{ParamFrom: "2020-03-15", ParamTo: "2020-03-15 00:00:00"})
	require.Equal(t, []string{"2020-001"}, identifiers(rows))

	rows = run(t, r, map[string]any{ParamFrom: "2020-03-16", ParamTo: "2020-06-01"})
	require.Equal(t, []string{"2020-3"}, identifiers(rows))
}

func TestReportFilters(t *testing.T) {
	r := newReport(seededDB(t))
	cases := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{"status equals", map[string]any{ParamProcessingStatus: "completed"}, []string{"2020-001"}},
		{"status unset", map[string]any{ParamProcessingStatus: NoDefinedValue}, []string{"2019-010", "2021-7"}},
		{"status set", map[string]any{ParamProcessingStatus: AnyDefinedValue}, []string{"2020-001", "2020-3"}},
		{"priority set", map[string]any{ParamProcessingPriority: AnyDefinedValue}, []string{"2020-001"}},
		{"priority unset", map[string]any{ParamProcessingPriority: NoDefinedValue}, []string{"2020-3", "2019-010", "2021-7"}},
		{"classification second slot", map[string]any{ParamClassification: "Maps"}, []string{"2020-3"}},
		{"classification first slot", map[string]any{ParamClassification: "Photographs"}, []string{"2020-001"}},
		{"classification unknown", map[string]any{ParamClassification: "Posters"}, []string{}},
		{"donor person", map[string]any{ParamDonor: map[string]any{"ref": "/agents/people/5"}}, []string{"2020-001"}},
		{"donor corporate entity", map[string]any{ParamDonor: map[string]any{"ref": "/agents/corporate_entities/5"}}, []string{"2021-7"}},
		{"donor family without accessions", map[string]any{ParamDonor: map[string]any{"ref": "/agents/families/7"}}, []string{}},
		{"unmatched donor is ignored", map[string]any{ParamDonor: map[string]any{"ref": "/agents/software/5"}}, []string{"2020-001", "2020-3", "2019-010", "2021-7"}},
		{"combined", map[string]any{
			ParamFrom:             "2020-01-01",
			ParamProcessingStatus: AnyDefinedValue,
			ParamDonor:            map[string]any{"ref": "/agents/people/6"},
		}, []string{"2020-3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, identifiers(run(t, r, tc.raw)))
		})
	}
}

func TestReportIsIdempotent(t *testing.T) {
	r := newReport(seededDB(t))
	raw := map[string]any{ParamProcessingStatus: AnyDefinedValue}
	first := run(t, r, raw)
	second := run(t, r, raw)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second run differs:\n%s", diff)
	}
}

func TestReportScopedToRepository(t *testing.T) {
	r := newReport(seededDB(t))
	rows, err := r.Run(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"2020-999"}, identifiers(rows))
}

func TestReportLogsUnmatchedDonor(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newReport(seededDB(t))
	r.Logger = zap.New(core)
	run(t, r, map[string]any{ParamDonor: "/repositories/2/things/1"})
	require.Equal(t, 1, logs.FilterMessageSnippet("donor reference matched no agent kind").Len())
}

func TestReportMissingSourceRole(t *testing.T) {
	db := seededDB(t)
	_, err := db.Exec("DELETE FROM enumeration_value WHERE id = 10")
	require.NoError(t, err)
	_, err = newReport(db).Run(context.Background(), nil, 2)
	require.ErrorIs(t, err, ErrSourceRoleMissing)
}

func TestReportMalformedDate(t *testing.T) {
	_, err := newReport(seededDB(t)).Run(context.Background(), map[string]any{ParamFrom: "yesterday-ish"}, 2)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ParamFrom, verr.Parameter)
}

var registerFunctions sync.Once

// registerStoredFunctions installs stand-ins for the ArchivesSpace stored
// functions on every new SQLite connection.
func registerStoredFunctions(t *testing.T) {
	t.Helper()
	registerFunctions.Do(func() {
		enumValues := map[int64]string{40: "Maps", 41: "Photographs"}
		require.NoError(t, msqlite.RegisterScalarFunction("GetEnumValue", 1,
			func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				id, ok := args[0].(int64)
				if !ok {
					return nil, nil
				}
				return enumValues[id], nil
			}))
		for _, fn := range []string{
			"GetAccessionLocationUserDefined",
			"GetAccessionProcessingStatus",
			"GetAccessionProcessingPriority",
			"GetAccessionClassificationsUserDefined",
			"GetAccessionExtentNumberType",
			"GetAccessionSourceName",
			"GetAccessionDonorNumbers",
		} {
			name := fn
			require.NoError(t, msqlite.RegisterScalarFunction(name, 1,
				func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
					return fmt.Sprintf("%s:%v", name, args[0]), nil
				}))
		}
	})
}

func TestTemplateWithStoredFunctions(t *testing.T) {
	registerStoredFunctions(t)
	db := seededDB(t)

	host, err := datasetapi.NewHostTemplate("bhl", Template(TemplateOptions{StoredFunctions: true, EnumFunction: "GetEnumValue"}))
	require.NoError(t, err)
	require.NoError(t, host.Bind(datasetapi.Environment{DB: db, Dialect: sqlquery.SQLite, Now: func() time.Time { return fixedNow }}))

	result, perrs, err := host.Run(context.Background(), map[string]any{ParamClassification: "Maps"}, datasetapi.Scope{RepoID: 2}, datasetapi.FormatJSON)
	require.NoError(t, err)
	require.Empty(t, perrs)
	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	require.Equal(t, "2020-3", row[ColumnIdentifier])
	require.Equal(t, "GetAccessionSourceName:2", row[ColumnDonorName])
	require.Equal(t, "GetAccessionLocationUserDefined:2", row[ColumnLocation])
	require.Equal(t, 1, result.Metadata["row_count"])
}
