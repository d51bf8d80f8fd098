// Package result contains the Error value and the Result sum type used to
// report success or failure as ordinary return values.
package result

// Wire codes used by the mediator for failures it produces itself.
const (
	CodeValidation      = "validation"
	CodeBadRequest      = "bad_request"
	CodeNotFound        = "not_found"
	CodeUnhandled       = "unhandled"
	CodeDeserialization = "deserialization"
	CodeTransport       = "transport"
	CodeHTTP            = "http"
)

// Error is an immutable failure description.
//
// Two errors are equal when their codes and messages match. CausedBy keeps
// the underlying failure for diagnostics and never takes part in equality or
// serialization.
type Error struct {
	Code     string
	Message  string
	CausedBy error
}

// ErrorKey is the comparable identity of an Error. Equal errors have equal
// keys, which makes it usable as a map key.
type ErrorKey struct {
	Code    string
	Message string
}

// NewError creates an Error. It panics when message is empty.
func NewError(code, message string, cause ...error) Error {
	if message == "" {
		panic("result: error message must not be empty")
	}
	e := Error{Code: code, Message: message}
	if len(cause) > 0 {
		e.CausedBy = cause[0]
	}
	return e
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the wrapped cause.
func (e Error) Unwrap() error { return e.CausedBy }

// Is reports whether target is an Error with the same code and message.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && e.Equal(t)
}

// Equal reports whether both errors have the same code and message.
func (e Error) Equal(other Error) bool {
	return e.Code == other.Code && e.Message == other.Message
}

// Key returns the comparable identity of e.
func (e Error) Key() ErrorKey {
	return ErrorKey{Code: e.Code, Message: e.Message}
}

// WithCause returns a copy of e wrapping cause.
func (e Error) WithCause(cause error) Error {
	e.CausedBy = cause
	return e
}
