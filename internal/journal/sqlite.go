package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"httpmediator/internal/platform/sqlite"
	"httpmediator/pkg/mediator/server"
)

// SQLiteStore keeps the journal in an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore migrates db and wraps it. The store owns db from now on.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := sqlite.Migrate(db, migrations, "migrations/sqlite"); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, e server.Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (id, request_id, method, uri, status, code, duration_ns, at_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Method, e.URI, e.Status, e.Code, int64(e.Duration), e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, f Filter) ([]server.Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, method, uri, status, code, duration_ns, at_ns
		 FROM journal
		 WHERE ? = '' OR uri = ?
		 ORDER BY at_ns DESC, id
		 LIMIT ?`,
		f.URI, f.URI, f.limit())
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	out := make([]server.Entry, 0, f.limit())
	for rows.Next() {
		var (
			e       server.Entry
			dur, at int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Method, &e.URI, &e.Status, &e.Code, &dur, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Duration = time.Duration(dur)
		e.At = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal WHERE at_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
