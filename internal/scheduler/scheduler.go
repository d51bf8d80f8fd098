// Package scheduler runs the periodic maintenance jobs of the mediator
// server, such as journal retention and rate limiter sweeps.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a scheduled job.
type JobFunc func(ctx context.Context) error

// JobID identifies a registered job.
type JobID = cron.EntryID

// OverlapPolicy decides what happens when a job fires while still running.
type OverlapPolicy int

const (
	AllowOverlap OverlapPolicy = iota
	SkipIfRunning
	DelayIfRunning
)

// JobOptions configures a job.
type JobOptions struct {
	Name    string
	Timeout time.Duration
	Overlap OverlapPolicy
}

// Hooks observe job runs.
type Hooks struct {
	OnFinish func(name string, d time.Duration, err error)
}

// Config configures Scheduler.
type Config struct {
	Logger *slog.Logger
	Hooks  Hooks
}

// Scheduler wraps a cron runner bound to a context.
type Scheduler struct {
	cron   *cron.Cron
	log    *slog.Logger
	hooks  Hooks
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// cronLogger forwards cron's logr-style calls to slog.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append([]any{"err", err}, kv...)...)
}

// New creates a stopped scheduler. Schedules accept an optional seconds field
// and descriptors such as "@every 5m".
func New(cfg Config) *Scheduler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := cronLogger{log: log.With("component", "cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(l),
		),
		log:    log,
		hooks:  cfg.Hooks,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under schedule.
func (s *Scheduler) Add(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	if opts.Name == "" {
		opts.Name = "unnamed"
	}
	var chain cron.Chain
	l := cronLogger{log: s.log.With("job", opts.Name)}
	switch opts.Overlap {
	case SkipIfRunning:
		chain = cron.NewChain(cron.SkipIfStillRunning(l))
	case DelayIfRunning:
		chain = cron.NewChain(cron.DelayIfStillRunning(l))
	default:
		chain = cron.NewChain()
	}

	id, err := s.cron.AddJob(schedule, chain.Then(cron.FuncJob(func() { s.run(job, opts) })))
	if err != nil {
		return 0, fmt.Errorf("scheduler: job %s: %w", opts.Name, err)
	}
	s.log.Info("job scheduled", "name", opts.Name, "schedule", schedule, "id", id)
	return id, nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(id JobID) { s.cron.Remove(id) }

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them until ctx is done. Calling it
// again is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	var done context.Context
	s.once.Do(func() {
		s.cancel()
		done = s.cron.Stop()
	})
	if done == nil {
		return nil
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs job synchronously with the scheduler's context and options.
func (s *Scheduler) RunNow(job JobFunc, opts JobOptions) {
	if opts.Name == "" {
		opts.Name = "unnamed"
	}
	s.run(job, opts)
}

func (s *Scheduler) run(job JobFunc, opts JobOptions) {
	ctx := s.ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job(ctx)
	}()
	d := time.Since(start)

	if s.hooks.OnFinish != nil {
		s.hooks.OnFinish(opts.Name, d, err)
	}
	if err != nil {
		s.log.Error("job failed", "name", opts.Name, "dur", d, "err", err)
		return
	}
	s.log.Debug("job done", "name", opts.Name, "dur", d)
}
