// Package server dispatches mediator requests received over HTTP to the
// registered handlers through the server-side pipeline.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// ServiceKey is the key the server is stored under in mediator.Services.
const ServiceKey = "mediator.server"

// RequestIDHeader correlates a call across client, server and journal.
const RequestIDHeader = "X-Request-ID"

const maxRequestBody = 8 << 20

// Server is the server mediator.
type Server struct {
	reg        *Registry
	base       string
	log        *slog.Logger
	validators *mediator.Validators
	metrics    *mediator.Metrics
	tracer     trace.TracerProvider
	recorder   Recorder
	guards     []mediator.Middleware
	extra      []mediator.Middleware
	pipeline   *mediator.Pipeline
}

// Option configures Server.
type Option func(*Server)

// WithAPIBase sets the path prefix routes are mounted under.
func WithAPIBase(base string) Option {
	return func(s *Server) { s.base = base }
}

// WithLogger sets logger used by the pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithValidators validates requests before dispatch.
func WithValidators(vs *mediator.Validators) Option {
	return func(s *Server) { s.validators = vs }
}

// WithMetrics records server calls.
func WithMetrics(m *mediator.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracerProvider starts a span per call.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

// WithRecorder journals every dispatched call.
func WithRecorder(rec Recorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithGuards adds middleware that run before validation, such as ACL or
// RateLimiter.
func WithGuards(mws ...mediator.Middleware) Option {
	return func(s *Server) { s.guards = append(s.guards, mws...) }
}

// WithMiddleware appends middleware right before dispatch.
func WithMiddleware(mws ...mediator.Middleware) Option {
	return func(s *Server) { s.extra = append(s.extra, mws...) }
}

// New builds the server and its pipeline: Recover, Tracing, Logging,
// Metrics, Journal, Recover again, guards, Validation, custom middleware,
// then dispatch. The inner Recover contains handler failures so the
// observers record the 500 the peer receives; the outer one covers the
// observers themselves.
func New(reg *Registry, opts ...Option) *Server {
	s := &Server{reg: reg, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	mws := []mediator.Middleware{mediator.Recover(s.log, http.StatusInternalServerError)}
	if s.tracer != nil {
		mws = append(mws, Tracing(s.tracer))
	}
	mws = append(mws, mediator.Logging(s.log, mediator.SideServer))
	if s.metrics != nil {
		mws = append(mws, s.metrics.Middleware)
	}
	if s.recorder != nil {
		mws = append(mws, Journal(s.recorder, s.log))
	}
	mws = append(mws, mediator.Recover(s.log, http.StatusInternalServerError))
	mws = append(mws, s.guards...)
	if s.validators != nil {
		mws = append(mws, mediator.Validation(s.validators))
	}
	mws = append(mws, s.extra...)
	s.pipeline = mediator.NewPipeline(reg.dispatch, mws...)
	return s
}

// Mount adds one route per registered contract to r.
func (s *Server) Mount(r gin.IRoutes) {
	for _, d := range s.reg.Routes() {
		rt, _ := s.reg.lookup(d.Route())
		r.Handle(string(d.Method), mediator.JoinPath(s.base, d.URI), s.serve(rt))
	}
}

// Handler returns a gin engine serving the registered contracts.
func (s *Server) Handler() http.Handler {
	e := gin.New()
	e.Use(gin.Recovery())
	s.Mount(e)
	return e
}

func (s *Server) serve(rt *route) gin.HandlerFunc {
	return func(gc *gin.Context) {
		id := gc.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		gc.Header(RequestIDHeader, id)

		req, err := rt.bind(gc)
		if err != nil {
			s.log.InfoContext(gc.Request.Context(), "mediator request rejected",
				slog.String("uri", rt.desc.URI), slog.String("request_id", id), slog.Any("err", err))
			Write(gc, httpresult.BadRequest[any](result.NewError(result.CodeBadRequest, "request could not be decoded", err)), id)
			return
		}

		call := rt.newCall(req)
		call.Path = gc.Request.URL.Path
		call.ID = id
		call.Header = gc.Request.Header.Clone()
		call.Remote = gc.ClientIP()

		ctx := gc.Request.Context()
		res, err := s.pipeline.Execute(ctx, call)
		if err != nil {
			if mediator.IsCancellation(ctx, err) {
				gc.AbortWithStatus(StatusClientClosedRequest)
				return
			}
			res = httpresult.InternalServerError[any](result.NewError(result.CodeUnhandled, mediator.UnhandledMessage, err))
		}
		Write(gc, res, id)
	}
}

// AddTo creates a server for reg and stores it in s. A second call on the
// same s fails with mediator.ErrAlreadyAdded.
func AddTo(s *mediator.Services, reg *Registry, opts ...Option) (*Server, error) {
	if _, ok := s.Get(ServiceKey); ok {
		return nil, mediator.ErrAlreadyAdded
	}
	srv := New(reg, opts...)
	if err := s.Add(ServiceKey, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// From returns the server stored in s.
func From(s *mediator.Services) (*Server, error) {
	return mediator.Lookup[*Server](s, ServiceKey)
}
