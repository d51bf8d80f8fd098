package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"
)

// Jitter selects how delays are randomized.
type Jitter int

const (
	// JitterNone uses the computed backoff as is.
	JitterNone Jitter = iota
	// JitterFull picks a delay uniformly in [0, backoff].
	JitterFull
	// JitterDecorrelated picks a delay in [backoff, 1.5*backoff].
	JitterDecorrelated
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of attempts, the first one included.
	Attempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single delay.
	MaxDelay time.Duration
	// Budget caps the total time spent waiting; 0 means no limit.
	Budget time.Duration
	// Multiplier grows the delay between attempts; defaults to 2.
	Multiplier float64
	Jitter     Jitter
	// Retryable decides whether err is worth another attempt; defaults to Transient.
	Retryable func(err error) bool
	// Delay overrides the computed backoff. Returning false stops retrying.
	Delay func(attempt int, err error) (time.Duration, bool)
	// OnRetry observes every scheduled retry.
	OnRetry func(attempt int, err error, wait time.Duration)

	after func(time.Duration) <-chan time.Time
}

// Default returns the policy used by the platform packages.
func Default() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
		Jitter:     JitterDecorrelated,
	}
}

func (p Policy) normalize() (Policy, error) {
	if p.Attempts <= 0 {
		return p, errors.New("retry: attempts must be positive")
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.Budget < 0 {
		return p, errors.New("retry: delays cannot be negative")
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BaseDelay > p.MaxDelay {
		return p, errors.New("retry: base delay exceeds max delay")
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2
	}
	if p.Multiplier < 1 {
		return p, errors.New("retry: multiplier must be >= 1")
	}
	if p.Retryable == nil {
		p.Retryable = Transient
	}
	if p.after == nil {
		p.after = time.After
	}
	return p, nil
}

// ExhaustedError is returned when no attempt succeeded.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Reason   string
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %s after %d attempts (%s): %v", e.Reason, e.Attempts, e.Elapsed, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. Do returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do runs fn until it succeeds, returns a non-retryable error, the policy
// gives up or ctx is done. The error of a canceled ctx is returned as is.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p, err := p.normalize()
	if err != nil {
		return err
	}

	start := time.Now()
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		var perm permanentError
		if errors.As(last, &perm) {
			return perm.err
		}
		if ctx.Err() != nil && errors.Is(last, ctx.Err()) {
			return last
		}
		if attempt == p.Attempts {
			break
		}
		if !p.Retryable(last) {
			return last
		}

		wait := p.backoff(attempt)
		if p.Delay != nil {
			d, ok := p.Delay(attempt, last)
			if !ok {
				return last
			}
			if d > 0 {
				wait = min(d, p.MaxDelay)
			}
		}
		if p.Budget > 0 && time.Since(start)+wait > p.Budget {
			return &ExhaustedError{Attempts: attempt, Elapsed: time.Since(start), Reason: "budget exceeded", Last: last}
		}
		if deadline, ok := ctx.Deadline(); ok {
			wait = min(wait, time.Until(deadline))
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, last, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.after(wait):
		}
	}
	return &ExhaustedError{Attempts: p.Attempts, Elapsed: time.Since(start), Reason: "attempts exhausted", Last: last}
}

// backoff returns the delay after the given attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	d = min(d, p.MaxDelay)
	if d <= 0 {
		return 0
	}
	switch p.Jitter {
	case JitterFull:
		d = time.Duration(rand.Int64N(int64(d) + 1))
	case JitterDecorrelated:
		d += time.Duration(rand.Int64N(int64(d)/2 + 1))
	}
	return min(d, p.MaxDelay)
}

// Transient reports whether err looks like a temporary network failure.
// Context cancellation is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var sysErr *os.SyscallError
		if errors.As(urlErr.Err, &sysErr) {
			switch sysErr.Err {
			case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
				syscall.ENETDOWN, syscall.ENETUNREACH, syscall.EPIPE,
				syscall.EHOSTUNREACH, syscall.ETIMEDOUT:
				return true
			}
		}
	}
	return false
}
