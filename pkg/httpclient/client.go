// Package httpclient wraps http.Client with logging, default headers and
// retries driven by pkg/retry.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"httpmediator/pkg/retry"
)

// ErrReplayBodyTooLarge indicates request body exceeds replay limit.
var ErrReplayBodyTooLarge = errors.New("http: body too large for replay")

// Client wraps http.Client with logging and retries.
type Client struct {
	hc            *stdhttp.Client
	log           *slog.Logger
	policy        retry.Policy
	headers       map[string]string
	urlRedactor   func(*url.URL) string
	retryMethods  map[string]struct{}
	retryNonIdem  bool
	maxReplayBody int64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets request timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetries allows n retries after the first attempt, starting with the
// given backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.policy.Attempts = max(n, 0) + 1
		if backoff >= 0 {
			c.policy.BaseDelay = backoff
		}
	}
}

// WithMaxBackoff limits exponential backoff growth.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.policy.MaxDelay = d
		}
	}
}

// WithRetryBudget limits total time spent waiting between attempts.
func WithRetryBudget(d time.Duration) Option {
	return func(c *Client) { c.policy.Budget = d }
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithURLRedactor sets URL redactor for logs.
func WithURLRedactor(f func(*url.URL) string) Option {
	return func(c *Client) { c.urlRedactor = f }
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithRetryNonIdempotent allows retries for POST and PATCH.
func WithRetryNonIdempotent(v bool) Option {
	return func(c *Client) { c.retryNonIdem = v }
}

// WithMaxReplayBodySize limits size of buffered body for retries (0 disables limit).
func WithMaxReplayBodySize(n int64) Option {
	return func(c *Client) { c.maxReplayBody = n }
}

// New creates configured Client. Without WithRetries every request is sent once.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second

	c := &Client{
		hc:  &stdhttp.Client{Timeout: 15 * time.Second, Transport: tr},
		log: slog.Default(),
		policy: retry.Policy{
			Attempts:   1,
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   10 * time.Second,
			Multiplier: 2,
			Jitter:     retry.JitterDecorrelated,
		},
		headers:       make(map[string]string),
		maxReplayBody: 1 << 20,
		retryMethods: map[string]struct{}{
			stdhttp.MethodGet:     {},
			stdhttp.MethodHead:    {},
			stdhttp.MethodOptions: {},
			stdhttp.MethodPut:     {},
			stdhttp.MethodDelete:  {},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// statusError signals a retryable status. It never leaves Do.
type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string { return "unexpected status " + strconv.Itoa(e.status) }

// Do sends req with ctx. Retryable statuses (408, 421, 425, 429, 5xx) and
// transient network errors are retried while attempts remain; the response
// of the last attempt is returned whatever its status.
func (c *Client) Do(ctx context.Context, req *stdhttp.Request) (*stdhttp.Response, error) {
	if err := c.bufferBody(req); err != nil {
		return nil, err
	}

	p := c.policy
	if !c.retryable(req) {
		p.Attempts = 1
	}
	u := c.redactURL(req.URL)
	p.Retryable = func(err error) bool {
		var se *statusError
		return errors.As(err, &se) || retry.Transient(err)
	}
	p.Delay = func(_ int, err error) (time.Duration, bool) {
		var se *statusError
		if errors.As(err, &se) {
			return se.retryAfter, true
		}
		return 0, true
	}
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.WarnContext(ctx, "http request retry",
			slog.String("method", req.Method), slog.String("url", u),
			slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("error", err))
	}

	var (
		resp    *stdhttp.Response
		attempt int
	)
	start := time.Now()
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		attempt++
		r, err := c.prepare(ctx, req)
		if err != nil {
			return retry.Permanent(err)
		}
		res, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		if res.StatusCode == stdhttp.StatusMisdirectedRequest {
			if tr, ok := c.hc.Transport.(interface{ CloseIdleConnections() }); ok {
				tr.CloseIdleConnections()
			}
		}
		if retryableStatus(res.StatusCode) && attempt < p.Attempts {
			se := &statusError{status: res.StatusCode, retryAfter: retryAfter(res.Header.Get("Retry-After"))}
			drainAndClose(res.Body)
			return se
		}
		resp = res
		return nil
	})
	if err != nil {
		c.log.WarnContext(ctx, "http request error",
			slog.String("method", req.Method), slog.String("url", u),
			slog.Int("attempts", attempt), slog.Any("error", err))
		return nil, err
	}
	c.log.InfoContext(ctx, "http request",
		slog.String("method", req.Method), slog.String("url", u),
		slog.Int("status", resp.StatusCode), slog.Duration("dur", time.Since(start)), slog.Int("attempts", attempt))
	return resp, nil
}

func (c *Client) retryable(req *stdhttp.Request) bool {
	if _, ok := c.retryMethods[req.Method]; ok {
		return true
	}
	return c.retryNonIdem || req.Header.Get("Idempotency-Key") != ""
}

// bufferBody makes the body of req replayable.
func (c *Client) bufferBody(req *stdhttp.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	defer req.Body.Close()
	var (
		body []byte
		err  error
	)
	if c.maxReplayBody > 0 {
		body, err = io.ReadAll(io.LimitReader(req.Body, c.maxReplayBody+1))
		if err == nil && int64(len(body)) > c.maxReplayBody {
			return ErrReplayBodyTooLarge
		}
	} else {
		body, err = io.ReadAll(req.Body)
	}
	if err != nil {
		return fmt.Errorf("http: read request body: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	req.Body, _ = req.GetBody()
	return nil
}

func (c *Client) prepare(ctx context.Context, req *stdhttp.Request) (*stdhttp.Request, error) {
	r := req.Clone(ctx)
	for k, v := range c.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = rc
	}
	return r, nil
}

func retryableStatus(code int) bool {
	switch code {
	case stdhttp.StatusRequestTimeout, stdhttp.StatusMisdirectedRequest, stdhttp.StatusTooEarly, stdhttp.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// retryAfter parses Retry-After header value.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func (c *Client) redactURL(u *url.URL) string {
	if c.urlRedactor != nil {
		return c.urlRedactor(u)
	}
	return u.Redacted()
}

// drainAndClose drains up to 512KB from body and closes it.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, b, 512<<10)
	_ = b.Close()
}
