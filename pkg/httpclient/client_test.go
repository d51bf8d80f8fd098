package httpclient_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpmediator/pkg/httpclient"
)

func quiet() httpclient.Option {
	return httpclient.WithLogger(slog.New(slog.DiscardHandler))
}

// flaky answers with fail for the first n requests, then 200.
func flaky(n int32, fail func(w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= n {
			fail(w)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	return srv, &attempts
}

func TestClient_Do_RetriesStatuses(t *testing.T) {
	for _, status := range []int{
		http.StatusInternalServerError,
		http.StatusRequestTimeout,
		http.StatusMisdirectedRequest,
		http.StatusTooEarly,
		http.StatusServiceUnavailable,
	} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv, attempts := flaky(1, func(w http.ResponseWriter) { w.WriteHeader(status) })
			defer srv.Close()

			c := httpclient.New(quiet(), httpclient.WithRetries(1, 0))
			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)

			resp, err := c.Do(context.Background(), req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.EqualValues(t, 2, attempts.Load())
		})
	}
}

func TestClient_Do_LastResponseReturned(t *testing.T) {
	srv, attempts := flaky(10, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500}`))
	})
	defer srv.Close()

	for _, retries := range []int{0, 2} {
		attempts.Store(0)
		c := httpclient.New(quiet(), httpclient.WithRetries(retries, 0))
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		resp, err := c.Do(context.Background(), req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{"status":500}`, string(body))
		assert.EqualValues(t, retries+1, attempts.Load())
	}
}

func TestClient_Do_RetryAfter(t *testing.T) {
	srv, attempts := flaky(1, func(w http.ResponseWriter) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(1, 0))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, attempts.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_Do_PostNotRetried(t *testing.T) {
	srv, attempts := flaky(1, func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) })
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithRetries(3, 0))
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("x"))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_Do_PostReplaysBody(t *testing.T) {
	tests := []struct {
		name string
		opts []httpclient.Option
		key  string
	}{
		{"idempotency key", nil, "k-1"},
		{"non idempotent allowed", []httpclient.Option{httpclient.WithRetryNonIdempotent(true)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, attempts := flaky(1, func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) })
			defer srv.Close()

			opts := append([]httpclient.Option{quiet(), httpclient.WithRetries(1, 0)}, tt.opts...)
			c := httpclient.New(opts...)
			req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"a":1}`))
			require.NoError(t, err)
			if tt.key != "" {
				req.Header.Set("Idempotency-Key", tt.key)
			}

			resp, err := c.Do(context.Background(), req)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			assert.Equal(t, `{"a":1}`, string(body))
			assert.EqualValues(t, 2, attempts.Load())
		})
	}
}

func TestClient_Do_ReplayBodyTooLarge(t *testing.T) {
	c := httpclient.New(quiet(), httpclient.WithMaxReplayBodySize(4))
	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:1", io.NopCloser(strings.NewReader("too long")))
	require.NoError(t, err)
	req.GetBody = nil

	_, err = c.Do(context.Background(), req)
	assert.ErrorIs(t, err, httpclient.ErrReplayBodyTooLarge)
}

func TestClient_Do_DefaultHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := httpclient.New(quiet(), httpclient.WithHeaders(map[string]string{"User-Agent": "mediator", "X-Tenant": "a"}))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant", "b")

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "mediator", got.Get("User-Agent"))
	assert.Equal(t, "b", got.Get("X-Tenant"))
}

func TestClient_Do_Canceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := httpclient.New(quiet(), httpclient.WithRetries(3, time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Do_RedactsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var logs strings.Builder
	c := httpclient.New(
		httpclient.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		httpclient.WithURLRedactor(func(u *url.URL) string { return u.Host + u.Path }),
	)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/x?api_key=secret", nil)
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotContains(t, logs.String(), "secret")
	assert.Contains(t, logs.String(), "/x")
}
