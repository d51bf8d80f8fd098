package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"httpmediator/internal/platform/pg"
	"httpmediator/internal/platform/sqlite"
	"httpmediator/internal/scheduler"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// ErrDisabled is returned by Open for DriverNone.
var ErrDisabled = errors.New("journal: disabled")

// Config selects and locates the backend.
type Config struct {
	Driver string
	// DSN is a file path (or :memory:) for sqlite and a postgres:// URL for postgres.
	DSN string
}

// Open connects to the configured backend and brings its schema up to date.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN, sqlite.DefaultOptions())
		if err != nil {
			return nil, err
		}
		st, err := NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("journal opened", "driver", cfg.Driver, "path", cfg.DSN)
		return st, nil

	case DriverPostgres:
		if err := pg.WaitForDB(ctx, cfg.DSN, pg.DefaultWaitOptions()); err != nil {
			return nil, err
		}
		info, err := pg.Migrate(cfg.DSN, migrations, "migrations/postgres")
		if err != nil {
			return nil, err
		}
		pool, err := pg.Open(ctx, cfg.DSN, pg.DefaultPoolOptions())
		if err != nil {
			return nil, err
		}
		log.Info("journal opened", "driver", cfg.Driver, "migrated", info.Applied, "version", info.FinalVersion)
		return NewPostgresStore(pool), nil

	case DriverNone, "":
		return nil, ErrDisabled
	}
	return nil, fmt.Errorf("journal: unknown driver %q", cfg.Driver)
}

// PruneJob deletes entries older than retention.
func PruneJob(st Store, retention time.Duration, log *slog.Logger) scheduler.JobFunc {
	return func(ctx context.Context) error {
		n, err := st.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("journal pruned", "removed", n, "retention", retention)
		}
		return nil
	}
}

// SchedulePrune registers PruneJob on s under schedule.
func SchedulePrune(s *scheduler.Scheduler, st Store, schedule string, retention time.Duration, log *slog.Logger) (scheduler.JobID, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("journal: retention must be positive, got %s", retention)
	}
	if log == nil {
		log = slog.Default()
	}
	return s.Add(schedule, PruneJob(st, retention, log), scheduler.JobOptions{
		Name:    "journal-prune",
		Timeout: time.Minute,
		Overlap: scheduler.SkipIfRunning,
	})
}
