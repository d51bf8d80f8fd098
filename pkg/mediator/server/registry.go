package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
)

var (
	// ErrRouteConflict is returned when two handlers claim the same method and URI.
	ErrRouteConflict = errors.New("server: route already registered")
	// ErrEmptyResult is returned when a handler returns the zero result.
	ErrEmptyResult = errors.New("server: handler returned an empty result")
	// ErrNoRoute is returned when a call reaches dispatch without a registered handler.
	ErrNoRoute = errors.New("server: no handler for route")
)

// Handler handles one request type.
type Handler[TReq, TResp any] interface {
	Handle(ctx context.Context, req TReq) (httpresult.Result[TResp], error)
}

// HandlerFunc adapts a function to Handler. Expected failures are returned
// as error results; the error is for unexpected ones.
type HandlerFunc[TReq, TResp any] func(ctx context.Context, req TReq) (httpresult.Result[TResp], error)

func (f HandlerFunc[TReq, TResp]) Handle(ctx context.Context, req TReq) (httpresult.Result[TResp], error) {
	return f(ctx, req)
}

type route struct {
	desc    mediator.Descriptor
	bind    func(gc *gin.Context) (any, error)
	newCall func(req any) *mediator.Call
	invoke  mediator.Handler
}

// Registry maps (method, uri) pairs to handlers.
type Registry struct {
	mu     sync.RWMutex
	routes map[mediator.RouteKey]*route
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[mediator.RouteKey]*route)}
}

// Handle registers fn for contract.
func Handle[TReq, TResp any](reg *Registry, contract mediator.Contract[TReq, TResp], fn HandlerFunc[TReq, TResp]) error {
	return HandleWith[TReq, TResp](reg, contract, fn)
}

// HandleWith registers h for contract. It fails with ErrRouteConflict when
// the method and URI are taken.
func HandleWith[TReq, TResp any](reg *Registry, contract mediator.Contract[TReq, TResp], h Handler[TReq, TResp]) error {
	desc := contract.Descriptor()
	r := &route{
		desc: desc,
		bind: func(gc *gin.Context) (any, error) {
			var req TReq
			if err := bindRequest(gc, desc.Method, &req); err != nil {
				return nil, err
			}
			return req, nil
		},
		newCall: func(req any) *mediator.Call {
			return contract.NewCall(req.(TReq))
		},
		invoke: func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
			req, ok := call.Request.(TReq)
			if !ok {
				return httpresult.Result[any]{}, fmt.Errorf("server: %s got request %T", desc, call.Request)
			}
			res, err := h.Handle(ctx, req)
			if err != nil {
				return httpresult.Result[any]{}, err
			}
			if res.Status() == 0 {
				return httpresult.Result[any]{}, fmt.Errorf("%w: %s", ErrEmptyResult, desc)
			}
			return httpresult.Erase(res), nil
		},
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if prev, ok := reg.routes[desc.Route()]; ok {
		return fmt.Errorf("%w: %s (request %s, already used by %s)", ErrRouteConflict, desc, desc.Request, prev.desc.Request)
	}
	reg.routes[desc.Route()] = r
	return nil
}

// Routes returns the registered contracts sorted by URI and method.
func (reg *Registry) Routes() []mediator.Descriptor {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]mediator.Descriptor, 0, len(reg.routes))
	for _, r := range reg.routes {
		out = append(out, r.desc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].URI != out[j].URI {
			return out[i].URI < out[j].URI
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (reg *Registry) lookup(key mediator.RouteKey) (*route, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.routes[key]
	return r, ok
}

// dispatch is the terminal handler of the server pipeline.
func (reg *Registry) dispatch(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
	r, ok := reg.lookup(call.Descriptor.Route())
	if !ok {
		return httpresult.Result[any]{}, fmt.Errorf("%w: %s", ErrNoRoute, call.Descriptor)
	}
	return r.invoke(ctx, call)
}

// bindRequest decodes the query string for body-less verbs and the body,
// using the codec matching Content-Type, for the others.
func bindRequest(gc *gin.Context, method mediator.Method, dst any) error {
	if !method.HasBody() {
		if len(gc.Request.URL.RawQuery) == 0 {
			return nil
		}
		return gc.ShouldBindQuery(dst)
	}
	data, err := io.ReadAll(io.LimitReader(gc.Request.Body, maxRequestBody))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	codec, _ := mediator.CodecFor(gc.ContentType())
	return codec.Unmarshal(data, dst)
}
