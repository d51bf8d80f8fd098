package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// APIKeyHeader carries the key checked by ACL.
const APIKeyHeader = "X-API-Key"

// ACL allows calls carrying one of the configured API keys.
type ACL struct{ allowed map[string]struct{} }

// NewACL creates ACL by list of keys. An empty list allows every call.
func NewACL(keys []string) *ACL {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed reports whether key grants access.
func (a *ACL) IsAllowed(key string) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[key]
	return ok
}

// Middleware short-circuits with Unauthorized for unknown keys.
func (a *ACL) Middleware(next mediator.Handler) mediator.Handler {
	return func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
		if !a.IsAllowed(call.Header.Get(APIKeyHeader)) {
			return httpresult.Unauthorized[any](result.NewError("unauthorized", "missing or unknown api key")), nil
		}
		return next(ctx, call)
	}
}

// ParseKeys splits a list of keys separated by commas or newlines.
func ParseKeys(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\t' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RateLimiter restricts request frequency per peer address.
type RateLimiter struct {
	mu   sync.Mutex
	last map[string]time.Time
	rate time.Duration
	now  func() time.Time
}

// NewRateLimiter creates limiter allowing one call per rate and peer.
func NewRateLimiter(rate time.Duration) *RateLimiter {
	return &RateLimiter{last: make(map[string]time.Time), rate: rate, now: time.Now}
}

// Allow returns false if key hits the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if t, ok := r.last[key]; ok && now.Sub(t) < r.rate {
		return false
	}
	r.last[key] = now
	return true
}

// Middleware short-circuits with TooManyRequests when the peer is over the limit.
func (r *RateLimiter) Middleware(next mediator.Handler) mediator.Handler {
	return func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
		if call.Remote != "" && !r.Allow(call.Remote) {
			return httpresult.TooManyRequests[any](result.NewError("rate_limited", "too many requests")), nil
		}
		return next(ctx, call)
	}
}

// Sweep forgets peers whose last call is older than the rate and returns how
// many were removed.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for k, t := range r.last {
		if now.Sub(t) >= r.rate {
			delete(r.last, k)
			n++
		}
	}
	return n
}
