// Package app wires the test application: the server mediator with the
// test contracts, the journal, maintenance jobs, metrics and health.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"httpmediator/internal/config"
	"httpmediator/internal/journal"
	"httpmediator/internal/scheduler"
	"httpmediator/internal/testapp"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/mediator/server"
)

// App wires application components.
type App struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *prometheus.Registry
	services *mediator.Services
	journal  journal.Store
	sched    *scheduler.Scheduler
	tracer   *sdktrace.TracerProvider
	engine   *gin.Engine
}

// New builds the application. Nothing listens until Run.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	a := &App{
		cfg:      cfg,
		log:      log,
		metrics:  prometheus.NewRegistry(),
		services: mediator.NewServices(),
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jobRuns := promauto.With(a.metrics).NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Maintenance job runs by job and outcome.",
	}, []string{"job", "outcome"})
	a.sched = scheduler.New(scheduler.Config{Logger: log, Hooks: scheduler.Hooks{
		OnFinish: func(name string, _ time.Duration, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			jobRuns.WithLabelValues(name, outcome).Inc()
		},
	}})

	reg := server.NewRegistry()
	if err := testapp.Register(reg); err != nil {
		return nil, err
	}

	vs := mediator.NewValidators(mediator.WithStructTags())
	testapp.AddValidators(vs)
	opts := []server.Option{
		server.WithAPIBase(cfg.API.Base),
		server.WithLogger(log),
		server.WithValidators(vs),
		server.WithMetrics(mediator.NewMetrics(a.metrics, mediator.SideServer)),
	}

	st, err := journal.Open(ctx, journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN}, log)
	switch {
	case errors.Is(err, journal.ErrDisabled):
		log.Info("journal disabled")
	case err != nil:
		return nil, err
	default:
		a.journal = st
		if err := journal.Register(reg, st); err != nil {
			_ = st.Close()
			return nil, err
		}
		if _, err := journal.SchedulePrune(a.sched, st, cfg.Journal.PruneSpec, cfg.Journal.Retention, log); err != nil {
			_ = st.Close()
			return nil, err
		}
		opts = append(opts, server.WithRecorder(st))
	}

	var guards []mediator.Middleware
	if len(cfg.Guard.APIKeys) > 0 {
		guards = append(guards, server.NewACL(cfg.Guard.APIKeys).Middleware)
	}
	if cfg.Guard.RateLimit > 0 {
		limiter := server.NewRateLimiter(cfg.Guard.RateLimit)
		guards = append(guards, limiter.Middleware)
		if _, err := a.sched.Add("@every 1m", func(context.Context) error {
			if n := limiter.Sweep(); n > 0 {
				log.Debug("rate limiter swept", "removed", n)
			}
			return nil
		}, scheduler.JobOptions{Name: "ratelimit-sweep", Overlap: scheduler.SkipIfRunning}); err != nil {
			a.closeJournal()
			return nil, err
		}
	}
	opts = append(opts, server.WithGuards(guards...))

	if cfg.Tracing {
		if a.tracer, err = newTracerProvider(log); err != nil {
			a.closeJournal()
			return nil, err
		}
		opts = append(opts, server.WithTracerProvider(a.tracer))
	}

	srv, err := server.AddTo(a.services, reg, opts...)
	if err != nil {
		a.closeJournal()
		return nil, err
	}

	a.engine = gin.New()
	a.engine.Use(gin.Recovery())
	a.engine.GET("/healthz", a.health)
	a.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{Registry: a.metrics})))
	srv.Mount(a.engine)

	for _, d := range reg.Routes() {
		log.Debug("route", "route", d.String(), "request", d.Request, "response", d.Response)
	}
	return a, nil
}

// Handler returns the HTTP handler of the application.
func (a *App) Handler() http.Handler { return a.engine }

// Services returns the composition root holding the server mediator.
func (a *App) Services() *mediator.Services { return a.services }

func (a *App) health(gc *gin.Context) {
	driver := a.cfg.Journal.Driver
	if a.journal == nil {
		driver = journal.DriverNone
	}
	gc.JSON(http.StatusOK, gin.H{"status": "ok", "journal": driver})
}

// Run serves until ctx is done or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: a.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.cfg.HTTP.Addr, "api_base", a.cfg.API.Base)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.sched.Start()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	err := errors.Join(runErr, hs.Shutdown(shutdownCtx), a.Close(shutdownCtx))
	a.log.Info("stopped")
	return err
}

// Close stops background jobs and releases the journal and tracer.
func (a *App) Close(ctx context.Context) error {
	errs := []error{a.sched.Stop(ctx)}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}

func (a *App) closeJournal() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}
