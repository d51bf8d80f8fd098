package mediator

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Method is the HTTP verb of a contract.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// Valid reports whether m is one of the supported verbs.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// HasBody reports whether requests with this verb carry a body. Requests
// without a body are encoded in the query string.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// RouteKey identifies a route by method and relative URI.
type RouteKey struct {
	Method Method
	URI    string
}

func (k RouteKey) String() string { return string(k.Method) + " " + k.URI }

// Descriptor is the type-erased metadata of a contract.
type Descriptor struct {
	Method   Method
	URI      string
	Request  string
	Response string
}

// Route returns the route key of d.
func (d Descriptor) Route() RouteKey { return RouteKey{Method: d.Method, URI: d.URI} }

func (d Descriptor) String() string { return string(d.Method) + " " + d.URI }

// Contract statically binds a request type to its response type, verb and
// relative URI. Contracts are immutable and meant to be declared once as
// package level variables.
type Contract[TReq, TResp any] struct {
	desc Descriptor
}

// NewContract declares a contract. It panics when method is not supported or
// uri is empty: both are programming errors caught at start-up.
func NewContract[TReq, TResp any](method Method, uri string) Contract[TReq, TResp] {
	if !method.Valid() {
		panic(fmt.Sprintf("mediator: unsupported method %q for %q", method, uri))
	}
	uri = strings.Trim(uri, "/")
	if uri == "" {
		panic(fmt.Sprintf("mediator: empty uri for %s contract", method))
	}
	return Contract[TReq, TResp]{desc: Descriptor{
		Method:   method,
		URI:      uri,
		Request:  reflect.TypeFor[TReq]().String(),
		Response: reflect.TypeFor[TResp]().String(),
	}}
}

// Descriptor returns the erased metadata of c.
func (c Contract[TReq, TResp]) Descriptor() Descriptor { return c.desc }

// Method returns the verb of c.
func (c Contract[TReq, TResp]) Method() Method { return c.desc.Method }

// URI returns the relative URI of c.
func (c Contract[TReq, TResp]) URI() string { return c.desc.URI }

// NewCall wraps req into a Call for this contract.
func (c Contract[TReq, TResp]) NewCall(req TReq) *Call {
	return &Call{
		Descriptor: c.desc,
		Request:    req,
		Header:     http.Header{},
		decode: func(codec Codec, data []byte) (any, error) {
			var v TResp
			if err := codec.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// JoinPath joins an API base and a relative URI with exactly one slash.
func JoinPath(base, uri string) string {
	base = strings.TrimRight(base, "/")
	uri = strings.TrimLeft(uri, "/")
	if base == "" {
		return "/" + uri
	}
	return base + "/" + uri
}
