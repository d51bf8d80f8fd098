package mediator_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

type echoRequest struct {
	Text string `json:"text" form:"text"`
}

type echoResponse struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

var echoContract = mediator.NewContract[echoRequest, echoResponse](mediator.MethodPost, "/test/echo/")

func okTerminal(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
	req := call.Request.(echoRequest)
	return httpresult.Erase(httpresult.OK(echoResponse{Text: req.Text})), nil
}

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) mw(name string, stop bool) mediator.Middleware {
	return func(next mediator.Handler) mediator.Handler {
		return func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
			r.add(name + ">")
			if stop {
				r.add(name + "!")
				return httpresult.Erase(httpresult.Conflict[echoResponse](result.NewError("stop", "stopped by "+name))), nil
			}
			res, err := next(ctx, call)
			r.add("<" + name)
			return res, err
		}
	}
}

func TestChain_Order(t *testing.T) {
	rec := &recorder{}
	terminal := func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
		rec.add("handler")
		return okTerminal(ctx, call)
	}
	p := mediator.NewPipeline(terminal, rec.mw("A", false), nil, rec.mw("B", false), rec.mw("C", false))
	assert.Equal(t, 3, p.Len())

	res, err := p.Execute(context.Background(), echoContract.NewCall(echoRequest{Text: "hi"}))
	require.NoError(t, err)
	assert.True(t, res.IsOk())
	assert.Equal(t, []string{"A>", "B>", "C>", "handler", "<C", "<B", "<A"}, rec.steps)
}

func TestChain_ShortCircuit(t *testing.T) {
	tests := []struct {
		name string
		stop string
		want []string
	}{
		{"first", "A", []string{"A>", "A!"}},
		{"middle", "B", []string{"A>", "B>", "B!", "<A"}},
		{"last", "C", []string{"A>", "B>", "C>", "C!", "<B", "<A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			called := false
			terminal := func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
				called = true
				return okTerminal(ctx, call)
			}
			h := mediator.Chain(terminal,
				rec.mw("A", tt.stop == "A"),
				rec.mw("B", tt.stop == "B"),
				rec.mw("C", tt.stop == "C"),
			)
			res, err := h(context.Background(), echoContract.NewCall(echoRequest{}))
			require.NoError(t, err)
			assert.False(t, called)
			assert.Equal(t, http.StatusConflict, res.Status())
			assert.Equal(t, tt.want, rec.steps)
		})
	}
}

func TestPipeline_Concurrent(t *testing.T) {
	p := mediator.NewPipeline(okTerminal, mediator.Logging(slog.New(slog.DiscardHandler), mediator.SideServer))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Execute(context.Background(), echoContract.NewCall(echoRequest{Text: "x"}))
			assert.NoError(t, err)
			assert.True(t, res.IsOk())
		}()
	}
	wg.Wait()
}

func TestNewPipeline_NilTerminalPanics(t *testing.T) {
	assert.Panics(t, func() { mediator.NewPipeline(nil) })
}

func TestRecover_ReturnedError(t *testing.T) {
	boom := errors.New("database on fire")
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	terminal := func(context.Context, *mediator.Call) (httpresult.Result[any], error) { return httpresult.Result[any]{}, boom }
	h := mediator.Chain(terminal, mediator.Recover(log, http.StatusInternalServerError))

	res, err := h(context.Background(), echoContract.NewCall(echoRequest{}))
	require.NoError(t, err)
	require.True(t, res.IsError())
	assert.Equal(t, http.StatusInternalServerError, res.Status())

	e, err := res.Failure()
	require.NoError(t, err)
	assert.Equal(t, result.CodeUnhandled, e.Code)
	assert.NotContains(t, e.Message, "database")
	assert.ErrorIs(t, e, boom)
	assert.Contains(t, logs.String(), "database on fire")
}

func TestRecover_Panic(t *testing.T) {
	terminal := func(context.Context, *mediator.Call) (httpresult.Result[any], error) { panic("nil map") }
	h := mediator.Chain(terminal, mediator.Recover(slog.New(slog.DiscardHandler), http.StatusBadRequest))

	res, err := h(context.Background(), echoContract.NewCall(echoRequest{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.Status())
	e, _ := res.Failure()
	assert.ErrorIs(t, e, mediator.ErrPanic)
}

func TestRecover_CatchesOnce(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))
	terminal := func(context.Context, *mediator.Call) (httpresult.Result[any], error) { panic("inner") }
	h := mediator.Chain(terminal,
		mediator.Recover(log, http.StatusInternalServerError),
		mediator.Logging(slog.New(slog.DiscardHandler), mediator.SideServer),
	)
	_, err := h(context.Background(), echoContract.NewCall(echoRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("mediator panic")))
}

func TestRecover_CancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	terminal := func(ctx context.Context, _ *mediator.Call) (httpresult.Result[any], error) {
		return httpresult.Result[any]{}, ctx.Err()
	}
	h := mediator.Chain(terminal, mediator.Recover(nil, http.StatusInternalServerError))
	_, err := h(ctx, echoContract.NewCall(echoRequest{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecover_InvalidStatusPanics(t *testing.T) {
	assert.Panics(t, func() { mediator.Recover(nil, http.StatusOK) })
}

func TestLogging(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	terminal := func(context.Context, *mediator.Call) (httpresult.Result[any], error) {
		return httpresult.Erase(httpresult.NotFound[echoResponse](result.NewError("missing", "nothing here"))), nil
	}
	h := mediator.Chain(terminal, mediator.Logging(log, mediator.SideClient))
	call := echoContract.NewCall(echoRequest{})
	call.ID = "req-1"
	_, err := h(context.Background(), call)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `"uri":"test/echo"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"code":"missing"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"side":"client"`)
}

func TestIsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.False(t, mediator.IsCancellation(ctx, context.Canceled))
	cancel()
	assert.True(t, mediator.IsCancellation(ctx, context.Canceled))
	assert.True(t, mediator.IsCancellation(ctx, fmt.Errorf("read body: %w", context.Canceled)))
	assert.False(t, mediator.IsCancellation(ctx, errors.New("db down")))
	assert.False(t, mediator.IsCancellation(ctx, nil))
}
