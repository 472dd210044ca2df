// Package testutil provides a recording stub database for exercising Postgres
// query rendering without a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// Result is a canned result set returned for statements containing Match.
type Result struct {
	Match   string
	Columns []string
	Rows    [][]driver.Value
}

// Call records one statement executed through the stub.
type Call struct {
	Query string
	Args  []any
}

// StubConn records statements and serves canned results.
type StubConn struct {
	mu       sync.Mutex
	Calls    []Call
	Results  []Result
	FailPing bool
	FailExec bool
	FailTx   bool
	ReadOnly []bool
}

// NewStubDB registers a sql.DB backed by a fresh stub connection.
func NewStubDB(results ...Result) (*sql.DB, *StubConn) {
	conn := &StubConn{Results: results}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Queries returns the recorded statements in execution order.
func (c *StubConn) Queries() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.Calls))
	copy(out, c.Calls)
	return out
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.FailTx {
		return nil, fmt.Errorf("begin fail")
	}
	c.mu.Lock()
	c.ReadOnly = append(c.ReadOnly, opts.ReadOnly)
	c.mu.Unlock()
	return stubTx{}, nil
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.record(query, args)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.record(query, args)
	for _, res := range c.Results {
		if strings.Contains(query, res.Match) {
			return &stubRows{columns: res.Columns, rows: res.Rows}, nil
		}
	}
	return &stubRows{}, nil
}

func (c *StubConn) record(query string, args []driver.NamedValue) {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	c.mu.Lock()
	c.Calls = append(c.Calls, Call{Query: query, Args: values})
	c.mu.Unlock()
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *stubRows) Columns() []string { return r.columns }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}
