// Package sqlite opens embedded SQLite databases through the pure Go
// modernc driver and applies embedded migrations to them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Options tunes the database handle.
type Options struct {
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	PingTimeout     time.Duration
	// WALMode enables write-ahead logging; ignored for in-memory databases.
	WALMode     bool
	ForeignKeys bool
	BusyTimeout time.Duration
	ReadOnly    bool
}

// DefaultOptions returns options for a single-writer embedded database.
func DefaultOptions() Options {
	return Options{
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		PingTimeout:     5 * time.Second,
		WALMode:         true,
		ForeignKeys:     true,
		BusyTimeout:     5 * time.Second,
	}
}

// Open opens the database at path, creating its directory when needed, and
// applies the pragmas described by opts.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	if path != Memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
			}
		}
	} else {
		// every connection to :memory: sees its own database
		opts.WALMode = false
		opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
		opts.ConnMaxLifetime, opts.ConnMaxIdleTime = 0, 0
	}

	db, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	for _, p := range pragmas(opts) {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database, mostly for tests.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, Memory, DefaultOptions())
}

func dsn(path string, opts Options) string {
	var params []string
	if opts.ReadOnly {
		params = append(params, "mode=ro")
	}
	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if len(params) == 0 {
		return path
	}
	if path == Memory {
		return "file::memory:?" + strings.Join(params, "&")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func pragmas(opts Options) []string {
	out := make([]string, 0, 4)
	if opts.ForeignKeys {
		out = append(out, "PRAGMA foreign_keys = ON")
	}
	if opts.WALMode && !opts.ReadOnly {
		out = append(out, "PRAGMA journal_mode = WAL")
	}
	out = append(out, "PRAGMA synchronous = NORMAL")
	if opts.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()))
	}
	return out
}
