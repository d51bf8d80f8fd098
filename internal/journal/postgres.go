package journal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"httpmediator/pkg/mediator/server"
)

// PostgresStore keeps the journal in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewPostgresStore wraps an already migrated pool. The store owns pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Record(ctx context.Context, e server.Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO journal (id, request_id, method, uri, status, code, duration_ns, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.RequestID, e.Method, e.URI, e.Status, e.Code, int64(e.Duration), e.At)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, f Filter) ([]server.Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, request_id, method, uri, status, code, duration_ns, at
		 FROM journal
		 WHERE $1 = '' OR uri = $1
		 ORDER BY at DESC, id
		 LIMIT $2`,
		f.URI, f.limit())
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (server.Entry, error) {
		var (
			e   server.Entry
			dur int64
		)
		if err := row.Scan(&e.ID, &e.RequestID, &e.Method, &e.URI, &e.Status, &e.Code, &dur, &e.At); err != nil {
			return e, err
		}
		e.Duration = time.Duration(dur)
		e.At = e.At.UTC()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM journal WHERE at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	if !s.closed.Swap(true) {
		s.pool.Close()
	}
	return nil
}
