package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// ErrResponseStarted is the panic value raised by Write when something else
// already wrote the response.
var ErrResponseStarted = errors.New("server: response already started")

// StatusClientClosedRequest is recorded for calls whose client went away.
const StatusClientClosedRequest = 499

// Write writes res to gc: NoContent without a body, Ok values with the codec
// negotiated from Accept, and errors as problem details. requestID becomes
// the traceId member of problem details. Write panics with
// ErrResponseStarted when the response was already written.
func Write(gc *gin.Context, res httpresult.Result[any], requestID string) {
	if gc.Writer.Written() {
		panic(fmt.Errorf("%w: %s %s", ErrResponseStarted, gc.Request.Method, gc.Request.URL.Path))
	}

	switch {
	case res.Status() == 0:
		writeProblem(gc, result.NewError(result.CodeUnhandled, mediator.UnhandledMessage), http.StatusInternalServerError, requestID)
	case res.IsError():
		e, _ := res.Failure()
		writeProblem(gc, e, res.Status(), requestID)
	case !res.HasValue():
		gc.Status(res.Status())
		gc.Writer.WriteHeaderNow()
	default:
		v, _ := res.Value()
		codec, _ := mediator.CodecFor(gc.GetHeader("Accept"))
		data, err := codec.Marshal(v)
		if err != nil {
			_ = gc.Error(err)
			writeProblem(gc, result.NewError(result.CodeUnhandled, mediator.UnhandledMessage), http.StatusInternalServerError, requestID)
			return
		}
		gc.Data(res.Status(), codec.ContentType(), data)
	}
}

func writeProblem(gc *gin.Context, e result.Error, status int, requestID string) {
	p := httpresult.NewProblem(e, status, gc.Request.URL.Path)
	p.TraceID = requestID
	data, err := mediator.JSON.Marshal(p)
	if err != nil {
		gc.Status(status)
		gc.Writer.WriteHeaderNow()
		return
	}
	gc.Data(status, httpresult.ProblemContentType, data)
}
