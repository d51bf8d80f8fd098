package mediator

import (
	"errors"
	"net/http"
)

// ErrNoDecoder is returned when a Call was built without a contract.
var ErrNoDecoder = errors.New("mediator: call has no response decoder")

// Call is the per-call envelope that flows through a pipeline. It is created
// for one request and never shared between calls.
type Call struct {
	Descriptor Descriptor
	// Request is the typed request value.
	Request any
	// Path is the concrete path of the call: the target path on the client
	// and the matched request path on the server.
	Path string
	// ID correlates the call across logs, the journal and problem details.
	ID     string
	Header http.Header
	// Remote is the peer address on the server; empty on the client.
	Remote string

	decode func(Codec, []byte) (any, error)
}

// DecodeResponse decodes data into the contract's response type.
func (c *Call) DecodeResponse(codec Codec, data []byte) (any, error) {
	if c.decode == nil {
		return nil, ErrNoDecoder
	}
	return c.decode(codec, data)
}
