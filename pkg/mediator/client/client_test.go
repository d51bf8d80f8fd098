package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpmediator/pkg/httpclient"
	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/mediator/client"
	"httpmediator/pkg/result"
)

type searchRequest struct {
	Query string `json:"query" form:"q"`
	Limit int    `json:"limit" form:"limit"`
}

type searchResponse struct {
	Hits []string `json:"hits"`
}

var (
	search = mediator.NewContract[searchRequest, searchResponse](mediator.MethodGet, "search")
	index  = mediator.NewContract[searchRequest, searchResponse](mediator.MethodPost, "index")
)

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newClient(t *testing.T, h http.HandlerFunc, opts ...client.Option) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base := []client.Option{
		client.WithAPIBase(srv.URL + "/api"),
		client.WithLogger(quiet()),
		client.WithTransport(httpclient.New(httpclient.WithLogger(quiet()))),
	}
	return client.New(append(base, opts...)...)
}

func TestSend_QueryAndBody(t *testing.T) {
	var gotQuery, gotBody, gotPath, gotAccept, gotID string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		gotID = r.Header.Get("X-Request-ID")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":["a","b"]}`))
	})

	res, err := client.Send(context.Background(), c, search, searchRequest{Query: "go", Limit: 2})
	require.NoError(t, err)
	require.True(t, res.IsOk())
	v, err := res.Value()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.Hits)
	assert.Equal(t, "/api/search", gotPath)
	assert.Equal(t, "limit=2&q=go", gotQuery)
	assert.Empty(t, gotBody)
	assert.Contains(t, gotAccept, mediator.ContentTypeJSON)
	assert.NotEmpty(t, gotID)

	_, err = client.Send(context.Background(), c, index, searchRequest{Query: "go"})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
	assert.JSONEq(t, `{"query":"go","limit":0}`, gotBody)
}

func TestSend_ResponseMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		ctype    string
		body     string
		wantCode string
		wantMsg  string
		wantOk   bool
	}{
		{"ok", http.StatusCreated, "application/json", `{"hits":[]}`, "", "", true},
		{"problem", http.StatusConflict, httpresult.ProblemContentType, `{"status":409,"detail":"taken","code":"dup"}`, "dup", "taken", false},
		{"problem without body", http.StatusBadGateway, "", "", result.CodeHTTP, "Bad Gateway", false},
		{"problem garbage", http.StatusNotFound, "text/html", "<html>", result.CodeHTTP, "Not Found", false},
		{"unparseable ok body", http.StatusOK, "application/json", "{nope", result.CodeDeserialization, "", false},
		{"unexpected status", http.StatusNotModified, "", "", result.CodeDeserialization, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.ctype != "" {
					w.Header().Set("Content-Type", tt.ctype)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			res, err := client.Send(context.Background(), c, search, searchRequest{})
			require.NoError(t, err)
			if tt.wantOk {
				assert.True(t, res.IsOk())
				assert.Equal(t, tt.status, res.Status())
				return
			}
			require.True(t, res.IsError())
			e, _ := res.Failure()
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, e.Message)
			}
			if tt.wantCode == result.CodeDeserialization {
				assert.Equal(t, http.StatusBadRequest, res.Status())
			} else {
				assert.Equal(t, tt.status, res.Status())
			}
		})
	}
}

func TestSend_NoContent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	res, err := client.Send(context.Background(), c, index, searchRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsOk())
	assert.False(t, res.IsError())
	_, err = res.Value()
	assert.ErrorIs(t, err, httpresult.ErrNoValue)
}

func TestSend_MsgPack(t *testing.T) {
	var ctype string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		var req searchRequest
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, mediator.MsgPack.Unmarshal(b, &req))
		data, _ := mediator.MsgPack.Marshal(searchResponse{Hits: []string{req.Query}})
		w.Header().Set("Content-Type", mediator.ContentTypeMsgPack)
		_, _ = w.Write(data)
	}, client.WithCodec(mediator.MsgPack))

	res, err := client.Send(context.Background(), c, index, searchRequest{Query: "packed"})
	require.NoError(t, err)
	v, err := res.Value()
	require.NoError(t, err)
	assert.Equal(t, []string{"packed"}, v.Hits)
	assert.Equal(t, mediator.ContentTypeMsgPack, ctype)
}

func TestSend_ValidationShortCircuits(t *testing.T) {
	var hits atomic.Int32
	vs := mediator.NewValidators()
	mediator.AddValidator[searchRequest](vs, mediator.ValidatorFunc[searchRequest](func(_ context.Context, r searchRequest) []string {
		if r.Query == "" {
			return []string{"query is required"}
		}
		return nil
	}))
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }, client.WithValidators(vs))

	res, err := client.Send(context.Background(), c, search, searchRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status())
	e, _ := res.Failure()
	assert.Equal(t, "query is required", e.Message)
	assert.Zero(t, hits.Load())
}

func TestSend_PanickingMiddlewareIsBadRequest(t *testing.T) {
	boom := func(next mediator.Handler) mediator.Handler {
		return func(context.Context, *mediator.Call) (httpresult.Result[any], error) { panic("broken middleware") }
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {}, client.WithMiddleware(boom))
	res, err := client.Send(context.Background(), c, search, searchRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status())
	e, _ := res.Failure()
	assert.Equal(t, result.CodeUnhandled, e.Code)
	assert.ErrorIs(t, e, mediator.ErrPanic)
}

func TestSend_TransportFailure(t *testing.T) {
	c := client.New(
		client.WithAPIBase("http://127.0.0.1:1"),
		client.WithLogger(quiet()),
		client.WithTransport(httpclient.New(httpclient.WithLogger(quiet()))),
	)
	res, err := client.Send(context.Background(), c, search, searchRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status())
	e, _ := res.Failure()
	assert.Equal(t, result.CodeTransport, e.Code)
	assert.NotNil(t, e.CausedBy)
}

func TestSend_Canceled(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	res, err := client.Send(ctx, c, search, searchRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, res.IsError())
	assert.False(t, res.IsOk())
	assert.Zero(t, res.Status())
}

type wrongType struct{}

func TestSend_TypeMismatchIsDeserializationError(t *testing.T) {
	swap := func(next mediator.Handler) mediator.Handler {
		return func(context.Context, *mediator.Call) (httpresult.Result[any], error) {
			return httpresult.Erase(httpresult.OK(wrongType{})), nil
		}
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {}, client.WithMiddleware(swap))
	res, err := client.Send(context.Background(), c, search, searchRequest{})
	require.NoError(t, err)
	e, _ := res.Failure()
	assert.Equal(t, result.CodeDeserialization, e.Code)
	assert.ErrorIs(t, e, httpresult.ErrTypeMismatch)
}

func TestAddTo_Twice(t *testing.T) {
	s := mediator.NewServices()
	c, err := client.AddTo(s, client.WithLogger(quiet()))
	require.NoError(t, err)
	_, err = client.AddTo(s)
	assert.ErrorIs(t, err, mediator.ErrAlreadyAdded)

	got, err := client.From(s)
	require.NoError(t, err)
	assert.Same(t, c, got)
}
