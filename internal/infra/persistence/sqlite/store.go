// Package sqlite opens SQLite databases holding accession records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	driverName  = "sqlite"
	defaultPath = "accessions.db"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Open returns a handle to the SQLite database at path. An empty path uses
// accessions.db in the working directory; ":memory:" yields a private
// in-memory database pinned to a single connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = defaultPath
	}
	memory := isMemory(path)
	if !memory && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, path)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenReadOnly opens an existing database file for report queries only.
func OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	if isMemory(path) {
		return nil, errors.New("sqlite: read-only mode requires a database file")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat sqlite database: %w", err)
	}
	return Open(ctx, "file:"+path+"?mode=ro")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
