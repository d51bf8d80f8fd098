package server

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
)

const tracerName = "httpmediator/pkg/mediator/server"

// Tracing starts a server span per call.
func Tracing(tp trace.TracerProvider) mediator.Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next mediator.Handler) mediator.Handler {
		return func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
			ctx, span := tracer.Start(ctx, call.Descriptor.String(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", string(call.Descriptor.Method)),
					attribute.String("http.route", call.Descriptor.URI),
					attribute.String("mediator.request", call.Descriptor.Request),
					attribute.String("mediator.request_id", call.ID),
				),
			)
			defer span.End()

			res, err := next(ctx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return res, err
			}
			span.SetAttributes(attribute.Int("http.response.status_code", res.Status()))
			if res.IsError() {
				e, _ := res.Failure()
				span.SetAttributes(attribute.String("mediator.error_code", e.Code))
				if res.Status() >= 500 {
					span.SetStatus(codes.Error, e.Message)
				}
			}
			return res, nil
		}
	}
}
