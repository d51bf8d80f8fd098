// Package client sends typed requests through the client-side pipeline and
// over HTTP to a mediator server.
package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"httpmediator/pkg/httpclient"
	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// ServiceKey is the key the client is stored under in mediator.Services.
const ServiceKey = "mediator.client"

// Doer performs HTTP requests. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the client mediator. It is safe for concurrent use.
type Client struct {
	base       string
	transport  Doer
	codec      mediator.Codec
	log        *slog.Logger
	validators *mediator.Validators
	metrics    *mediator.Metrics
	extra      []mediator.Middleware
	pipeline   *mediator.Pipeline
}

// Option configures Client.
type Option func(*Client)

// WithAPIBase sets the absolute URL every contract URI is resolved against.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.base = base }
}

// WithTransport replaces the default *httpclient.Client.
func WithTransport(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.transport = d
		}
	}
}

// WithLogger sets logger used by the pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithValidators runs vs before any request leaves the process.
func WithValidators(vs *mediator.Validators) Option {
	return func(c *Client) { c.validators = vs }
}

// WithCodec selects the body codec; JSON by default.
func WithCodec(codec mediator.Codec) Option {
	return func(c *Client) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithMetrics records client calls.
func WithMetrics(m *mediator.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithMiddleware appends middleware after the built-in ones, right before
// the request is sent.
func WithMiddleware(mws ...mediator.Middleware) Option {
	return func(c *Client) { c.extra = append(c.extra, mws...) }
}

// New builds the client and its pipeline: Recover, Logging, Metrics,
// Recover again, Validation, custom middleware, then the sender. The inner
// Recover lets the observers see contained failures as results.
func New(opts ...Option) *Client {
	c := &Client{
		codec: mediator.JSON,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.transport == nil {
		c.transport = httpclient.New(httpclient.WithLogger(c.log))
	}

	mws := []mediator.Middleware{
		mediator.Recover(c.log, http.StatusBadRequest),
		mediator.Logging(c.log, mediator.SideClient),
	}
	if c.metrics != nil {
		mws = append(mws, c.metrics.Middleware)
	}
	mws = append(mws, mediator.Recover(c.log, http.StatusBadRequest))
	if c.validators != nil {
		mws = append(mws, mediator.Validation(c.validators))
	}
	mws = append(mws, c.extra...)
	c.pipeline = mediator.NewPipeline(c.send, mws...)
	return c
}

// Send runs req through the pipeline and returns the typed result. The error
// is non-nil only when ctx is canceled or expires; every other failure is a
// result. With a non-nil error the result is the zero Result, which reports
// IsError with status 0 and carries no Error.
func Send[TReq, TResp any](ctx context.Context, c *Client, contract mediator.Contract[TReq, TResp], req TReq) (httpresult.Result[TResp], error) {
	call := contract.NewCall(req)
	call.Path = mediator.JoinPath(c.base, contract.URI())
	call.ID = uuid.NewString()

	res, err := c.pipeline.Execute(ctx, call)
	if err != nil {
		return httpresult.Result[TResp]{}, err
	}
	typed, err := httpresult.Restore[TResp](res)
	if err != nil {
		return httpresult.BadRequest[TResp](result.NewError(result.CodeDeserialization, "response has an unexpected type", err)), nil
	}
	return typed, nil
}

// AddTo creates a client and stores it in s. A second call on the same s
// fails with mediator.ErrAlreadyAdded.
func AddTo(s *mediator.Services, opts ...Option) (*Client, error) {
	if _, ok := s.Get(ServiceKey); ok {
		return nil, mediator.ErrAlreadyAdded
	}
	c := New(opts...)
	if err := s.Add(ServiceKey, c); err != nil {
		return nil, err
	}
	return c, nil
}

// From returns the client stored in s.
func From(s *mediator.Services) (*Client, error) {
	return mediator.Lookup[*Client](s, ServiceKey)
}
