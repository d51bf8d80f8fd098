package mediator

import (
	"context"

	"httpmediator/pkg/httpresult"
)

// Handler runs one call. Expected outcomes, failures included, are returned
// as the result. The error is reserved for unexpected failures and for
// cancellation of ctx.
type Handler func(ctx context.Context, call *Call) (httpresult.Result[any], error)

// Middleware wraps a Handler. It may call next and pass its result through,
// transform that result, or return its own result without calling next.
type Middleware func(next Handler) Handler

// Chain applies middleware in order: the first one is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}

// Pipeline is a composed handler built once at start-up. It holds no
// per-call state and is safe for concurrent use.
type Pipeline struct {
	handler Handler
	size    int
}

// NewPipeline composes terminal with mws. It panics when terminal is nil.
func NewPipeline(terminal Handler, mws ...Middleware) *Pipeline {
	if terminal == nil {
		panic("mediator: pipeline needs a terminal handler")
	}
	n := 0
	for _, mw := range mws {
		if mw != nil {
			n++
		}
	}
	return &Pipeline{handler: Chain(terminal, mws...), size: n}
}

// Execute runs call through the pipeline.
func (p *Pipeline) Execute(ctx context.Context, call *Call) (httpresult.Result[any], error) {
	return p.handler(ctx, call)
}

// Len returns the number of middleware in the pipeline.
func (p *Pipeline) Len() int { return p.size }
