package mediator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/result"
)

// Side tells on which end of the wire a pipeline runs.
type Side string

const (
	SideClient Side = "client"
	SideServer Side = "server"
)

// ErrPanic wraps a value recovered from a panicking handler.
var ErrPanic = errors.New("mediator: handler panicked")

// UnhandledMessage is the message of the generic error produced by Recover.
const UnhandledMessage = "an unexpected error occurred while processing the request"

// IsCancellation reports whether err is the cancellation or expiry of ctx.
func IsCancellation(ctx context.Context, err error) bool {
	cerr := ctx.Err()
	return err != nil && cerr != nil && errors.Is(err, cerr)
}

// Recover contains unexpected failures of the rest of the chain: returned
// errors and panics. Each failure is logged once and turned into a generic
// error result with the given status; the failure is kept as the cause.
// Cancellation of ctx is passed through as an error. Recover belongs
// outermost; pipelines that observe outcomes add a second Recover right
// after the observers so they see the contained result. It panics when
// status is not 4xx or 5xx.
func Recover(log *slog.Logger, status int) Middleware {
	if !httpresult.IsErrorStatus(status) {
		panic(fmt.Sprintf("mediator: recover status %d is not an error status", status))
	}
	if log == nil {
		log = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call) (res httpresult.Result[any], err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.ErrorContext(ctx, "mediator panic",
					slog.String("call", call.Descriptor.String()),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				res, err = unhandled(status, fmt.Errorf("%w: %v", ErrPanic, rec)), nil
			}()

			res, err = next(ctx, call)
			if err == nil {
				return res, nil
			}
			if IsCancellation(ctx, err) {
				return httpresult.Result[any]{}, err
			}
			log.ErrorContext(ctx, "mediator unhandled error",
				slog.String("call", call.Descriptor.String()),
				slog.String("kind", result.KindOf(err).String()),
				slog.Any("err", err),
			)
			return unhandled(status, err), nil
		}
	}
}

func unhandled(status int, cause error) httpresult.Result[any] {
	r, err := httpresult.ErrorWith[any](result.NewError(result.CodeUnhandled, UnhandledMessage, cause), status)
	if err != nil {
		panic(err)
	}
	return r
}

// Logging logs every call with its outcome and duration.
func Logging(log *slog.Logger, side Side) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call) (httpresult.Result[any], error) {
			start := time.Now()
			res, err := next(ctx, call)
			attrs := []any{
				slog.String("side", string(side)),
				slog.String("method", string(call.Descriptor.Method)),
				slog.String("uri", call.Descriptor.URI),
				slog.Duration("dur", time.Since(start)),
			}
			if call.ID != "" {
				attrs = append(attrs, slog.String("request_id", call.ID))
			}
			switch {
			case IsCancellation(ctx, err):
				log.InfoContext(ctx, "mediator call canceled", append(attrs, slog.Any("err", err))...)
			case err != nil:
				log.WarnContext(ctx, "mediator call escaped containment",
					append(attrs, slog.String("kind", result.KindOf(err).String()))...)
			case res.IsError():
				e, _ := res.Failure()
				log.InfoContext(ctx, "mediator call failed",
					append(attrs, slog.Int("status", res.Status()), slog.String("code", e.Code), slog.String("msg", e.Message))...)
			default:
				log.DebugContext(ctx, "mediator call", append(attrs, slog.Int("status", res.Status()))...)
			}
			return res, err
		}
	}
}
