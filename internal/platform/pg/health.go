package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"httpmediator/pkg/retry"
)

// WaitOptions controls WaitForDB.
type WaitOptions struct {
	Attempts    int
	Interval    time.Duration
	MaxInterval time.Duration
	PingTimeout time.Duration
}

// DefaultWaitOptions waits roughly half a minute for a starting database.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Attempts:    10,
		Interval:    500 * time.Millisecond,
		MaxInterval: 5 * time.Second,
		PingTimeout: 3 * time.Second,
	}
}

type pinger func(ctx context.Context) error

// WaitForDB pings dsn until it answers, the attempts run out or ctx is done.
func WaitForDB(ctx context.Context, dsn string, opts WaitOptions) error {
	if _, err := pgxpool.ParseConfig(dsn); err != nil {
		return fmt.Errorf("pg: parse dsn: %w", err)
	}
	return waitFor(ctx, opts, func(ctx context.Context) error {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		return pool.Ping(ctx)
	})
}

func waitFor(ctx context.Context, opts WaitOptions, ping pinger) error {
	p := retry.Policy{
		Attempts:  opts.Attempts,
		BaseDelay: opts.Interval,
		MaxDelay:  opts.MaxInterval,
		Jitter:    retry.JitterNone,
		Retryable: func(error) bool { return true },
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		if opts.PingTimeout <= 0 {
			return ping(ctx)
		}
		pctx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
		return ping(pctx)
	})
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return fmt.Errorf("pg: database not available after %d attempts: %w", ex.Attempts, ex.Last)
	}
	return err
}

// Stats is a snapshot of pool usage.
type Stats struct {
	MaxConns  int32 `json:"maxConns"`
	OpenConns int32 `json:"openConns"`
	InUse     int32 `json:"inUse"`
	Idle      int32 `json:"idle"`
}

// PoolStats returns usage of pool; a nil pool yields zero stats.
func PoolStats(pool *pgxpool.Pool) Stats {
	if pool == nil {
		return Stats{}
	}
	s := pool.Stat()
	return Stats{
		MaxConns:  s.MaxConns(),
		OpenConns: s.TotalConns(),
		InUse:     s.AcquiredConns(),
		Idle:      s.IdleConns(),
	}
}

// Healthy reports whether the pool is configured, open and not saturated.
func (s Stats) Healthy() bool {
	if s.MaxConns == 0 || s.OpenConns == 0 {
		return false
	}
	return float64(s.InUse)/float64(s.MaxConns) <= 0.9
}
