package accessions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"accessionreport/pkg/sqlquery"
)

type fakeEnums struct {
	ids   map[string]int64
	calls int
}

func (f *fakeEnums) ValueID(_ context.Context, enumeration, value string) (int64, error) {
	f.calls++
	id, ok := f.ids[enumeration+"/"+value]
	if !ok {
		return 0, ErrEnumValueMissing
	}
	return id, nil
}

func (f *fakeEnums) ValueExpr(column string) string { return "GetEnumValue(" + column + ")" }

func baseParams() Params {
	return Params{
		RepoID: 2,
		From:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local),
		To:     time.Date(2020, 12, 31, 23, 59, 59, 0, time.Local),
	}
}

func TestBaseQueryShape(t *testing.T) {
	c := Composer{Dialect: sqlquery.SQLite, Enrichers: []Enricher{
		StoredFunction(ColumnLocation, "GetAccessionLocationUserDefined"),
		EnricherFunc{Name: ColumnDonorNumber, Fn: func(context.Context, int64) (any, error) { return nil, nil }},
	}}
	query, args := c.Base(2, 10).Build(sqlquery.SQLite)

	require.True(t, strings.HasPrefix(query, "SELECT accession.id AS accession_id, accession.accession_date AS accession_date, "+
		"accession.identifier AS identifier, accession.content_description AS content_description, "+
		"GetAccessionLocationUserDefined(accession.id) AS location FROM accession "), query)
	require.NotContains(t, query, ColumnDonorNumber)
	for _, fragment := range []string{
		"LEFT OUTER JOIN linked_agents_rlshp ON linked_agents_rlshp.accession_id = accession.id AND linked_agents_rlshp.role_id = ?",
		"LEFT OUTER JOIN collection_management ON collection_management.accession_id = accession.id",
		"JOIN enumeration AS enum_processing_status ON enum_processing_status.name = ?",
		"JOIN enumeration AS enum_processing_priority ON enum_processing_priority.name = ?",
		"LEFT OUTER JOIN enumeration_value AS enumvals_processing_status ON enumvals_processing_status.enumeration_id = enum_processing_status.id",
		"LEFT OUTER JOIN enumeration_value AS enumvals_processing_priority ON enumvals_processing_priority.enumeration_id = enum_processing_priority.id",
		"LEFT OUTER JOIN user_defined ON user_defined.accession_id = accession.id",
	} {
		require.Contains(t, query, fragment)
	}
	require.True(t, strings.HasSuffix(query, " WHERE accession.repo_id = ? GROUP BY accession.id ORDER BY accession.id"), query)
	require.Equal(t, []any{int64(10), EnumProcessingStatus, EnumProcessingPriority, int64(2)}, args)
}

func TestSourceRoleID(t *testing.T) {
	enums := &fakeEnums{ids: map[string]int64{"linked_agent_role/source": 10}}
	id, err := Composer{Enums: enums}.SourceRoleID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), id)

	_, err = Composer{Enums: &fakeEnums{}}.SourceRoleID(context.Background())
	require.ErrorIs(t, err, ErrSourceRoleMissing)
}

func TestComposeAbortsWithoutSourceRole(t *testing.T) {
	_, err := Composer{Enums: &fakeEnums{}}.Compose(context.Background(), baseParams())
	require.True(t, errors.Is(err, ErrSourceRoleMissing))
}

func TestPredicatesOrderAndShape(t *testing.T) {
	c := Composer{Dialect: sqlquery.SQLite, Enums: &fakeEnums{}}
	p := baseParams()
	p.ProcessingStatus = Is("completed")
	p.ProcessingPriority = Unset()
	p.Classification = Is("Maps")
	p.Donor = &DonorReference{Kind: DonorPerson, ID: 5}

	want := []sqlquery.Predicate{
		{SQL: "datetime(accession.accession_date) BETWEEN ? AND ?", Args: []any{"2020-01-01 00:00:00", "2020-12-31 23:59:59"}},
		{SQL: "enumvals_processing_status.value = ?", Args: []any{"completed"}},
		{SQL: "enumvals_processing_priority.value IS NULL"},
		{
			SQL: "(GetEnumValue(user_defined.enum_1_id) = ? OR GetEnumValue(user_defined.enum_2_id) = ? OR GetEnumValue(user_defined.enum_3_id) = ?)",
			Args: []any{"Maps", "Maps", "Maps"},
		},
		{SQL: "linked_agents_rlshp.agent_person_id = ?", Args: []any{int64(5)}},
	}
	if diff := cmp.Diff(want, c.Predicates(p)); diff != "" {
		t.Fatalf("predicates mismatch (-want +got):\n%s", diff)
	}
}

func TestPredicatesUnconstrainedContributeNothing(t *testing.T) {
	c := Composer{Dialect: sqlquery.SQLite}
	preds := c.Predicates(baseParams())
	require.Len(t, preds, 1)
	require.Contains(t, preds[0].SQL, "BETWEEN")
}

func TestPredicatesSetFilters(t *testing.T) {
	c := Composer{Dialect: sqlquery.SQLite, Enums: &fakeEnums{}}
	p := baseParams()
	p.ProcessingStatus = Set()
	p.Classification = Set()
	preds := c.Predicates(p)
	require.Len(t, preds, 3)
	require.Equal(t, "enumvals_processing_status.value IS NOT NULL", preds[1].SQL)
	require.Equal(t, "(user_defined.enum_1_id IS NOT NULL OR user_defined.enum_2_id IS NOT NULL OR user_defined.enum_3_id IS NOT NULL)", preds[2].SQL)

	p.Classification = Unset()
	preds = c.Predicates(p)
	require.Equal(t, "(user_defined.enum_1_id IS NULL AND user_defined.enum_2_id IS NULL AND user_defined.enum_3_id IS NULL)", preds[2].SQL)
}

func TestPredicatesDonorKinds(t *testing.T) {
	c := Composer{Dialect: sqlquery.SQLite}
	for kind, column := range map[DonorKind]string{
		DonorPerson:          "linked_agents_rlshp.agent_person_id = ?",
		DonorFamily:          "linked_agents_rlshp.agent_family_id = ?",
		DonorCorporateEntity: "linked_agents_rlshp.agent_corporate_entity_id = ?",
	} {
		p := baseParams()
		p.Donor = &DonorReference{Kind: kind, ID: 9}
		preds := c.Predicates(p)
		require.Equal(t, column, preds[len(preds)-1].SQL)
	}
}

func TestPostgresAssembledQuery(t *testing.T) {
	enums := &fakeEnums{ids: map[string]int64{"linked_agent_role/source": 10}}
	c := Composer{Dialect: sqlquery.Postgres, Enums: SQLEnums{Dialect: sqlquery.Postgres}}
	p := baseParams()
	p.ProcessingStatus = Is("completed")

	roleID, err := Composer{Enums: enums}.SourceRoleID(context.Background())
	require.NoError(t, err)
	query, args := c.Assemble(c.Base(p.RepoID, roleID), p).Build(sqlquery.Postgres)

	require.Contains(t, query, "linked_agents_rlshp.role_id = $1")
	require.Contains(t, query, "accession.repo_id = $4")
	require.Contains(t, query, "CAST(accession.accession_date AS timestamp) BETWEEN CAST($5 AS timestamp) AND CAST($6 AS timestamp)")
	require.Contains(t, query, "enumvals_processing_status.value = $7")
	require.Len(t, args, 7)
}

func TestSQLEnumsValueExpr(t *testing.T) {
	require.Equal(t, "(SELECT value FROM enumeration_value WHERE enumeration_value.id = ud.enum_1_id)", SQLEnums{}.ValueExpr("ud.enum_1_id"))
	require.Equal(t, "GetEnumValue(ud.enum_1_id)", SQLEnums{Function: "GetEnumValue"}.ValueExpr("ud.enum_1_id"))
}
