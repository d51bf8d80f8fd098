package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// Entry is one dispatched call as seen by the journal.
type Entry struct {
	ID        string        `json:"id"`
	RequestID string        `json:"requestId"`
	Method    string        `json:"method"`
	URI       string        `json:"uri"`
	Status    int           `json:"status"`
	Code      string        `json:"code,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Recorder stores journal entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Journal records every call that reaches it. Recording failures are logged
// and never change the result.
func Journal(rec Recorder, log *slog.Logger) mediator.Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next mediator.Handler) mediator.Handler {
		return func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
			start := time.Now()
			res, err := next(ctx, call)

			e := Entry{
				ID:        uuid.NewString(),
				RequestID: call.ID,
				Method:    string(call.Descriptor.Method),
				URI:       call.Descriptor.URI,
				Status:    res.Status(),
				Duration:  time.Since(start),
				At:        start.UTC(),
			}
			switch {
			case mediator.IsCancellation(ctx, err):
				e.Status = StatusClientClosedRequest
			case err != nil:
				e.Status = http.StatusInternalServerError
				e.Code = result.CodeUnhandled
			case res.IsError():
				f, _ := res.Failure()
				e.Code = f.Code
			}
			if rerr := rec.Record(context.WithoutCancel(ctx), e); rerr != nil {
				log.WarnContext(ctx, "journal record failed", slog.String("uri", e.URI), slog.Any("err", rerr))
			}
			return res, err
		}
	}
}
