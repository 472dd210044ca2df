package testutil

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubDBServesMatchingResultAndRecordsCalls(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB(Result{
		Match:   "FROM accession",
		Columns: []string{"accession_id", "identifier"},
		Rows:    [][]driver.Value{{int64(1), `["2020","001",null,null]`}},
	})
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.PingContext(ctx))

	rows, err := db.QueryContext(ctx, "SELECT accession.id AS accession_id, identifier FROM accession WHERE accession.repo_id = $1", int64(2))
	require.NoError(t, err)
	var (
		id         int64
		identifier string
	)
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&id, &identifier))
	require.False(t, rows.Next())
	require.NoError(t, rows.Close())
	require.Equal(t, int64(1), id)
	require.Equal(t, `["2020","001",null,null]`, identifier)

	empty, err := db.QueryContext(ctx, "SELECT id FROM enumeration")
	require.NoError(t, err)
	require.False(t, empty.Next())
	require.NoError(t, empty.Close())

	calls := conn.Queries()
	require.Len(t, calls, 2)
	require.Equal(t, []any{int64(2)}, calls[0].Args)
}

func TestStubDBFailureSwitches(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })

	conn.FailExec = true
	_, err := db.ExecContext(ctx, "SET search_path TO archivesspace")
	require.Error(t, err)

	conn.FailTx = true
	_, err = db.BeginTx(ctx, nil)
	require.Error(t, err)
}
