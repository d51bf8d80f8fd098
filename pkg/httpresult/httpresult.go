// Package httpresult pairs a result.Result style payload with the HTTP status
// code it travels with.
package httpresult

import (
	"errors"
	"fmt"
	"net/http"

	"httpmediator/pkg/result"
)

var (
	// ErrBadResult is returned when a status code disagrees with the result variant.
	ErrBadResult = errors.New("httpresult: status code does not match result variant")
	// ErrNoValue is returned when a value is read from a result that has none (204 No Content).
	ErrNoValue = errors.New("httpresult: unwrap of result without value")
	// ErrTypeMismatch is returned by Restore when the erased value has another type.
	ErrTypeMismatch = errors.New("httpresult: value type mismatch")
)

// BadResultError describes a rejected status/variant pair.
type BadResultError struct {
	Status int
	Ok     bool
}

func (e *BadResultError) Error() string {
	variant := "error"
	if e.Ok {
		variant = "ok"
	}
	return fmt.Sprintf("httpresult: status %d is not valid for an %s result", e.Status, variant)
}

func (e *BadResultError) Unwrap() error { return ErrBadResult }

// IsSuccessStatus reports whether status is 2xx.
func IsSuccessStatus(status int) bool { return status >= 200 && status < 300 }

// IsErrorStatus reports whether status is 4xx or 5xx.
func IsErrorStatus(status int) bool { return status >= 400 && status < 600 }

// Result is either Ok(value, status) or Error(error, status). The status
// class always agrees with the variant. The zero Result is an empty Error
// variant with status 0: IsError reports true and both accessors fail with
// result.ErrInvalidState.
type Result[T any] struct {
	status   int
	value    T
	hasValue bool
	err      *result.Error
}

// OkWith returns an Ok result; status must be 2xx. A 204 status yields a
// result without a value.
func OkWith[T any](v T, status int) (Result[T], error) {
	if !IsSuccessStatus(status) {
		return Result[T]{}, &BadResultError{Status: status, Ok: true}
	}
	if status == http.StatusNoContent {
		return Result[T]{status: status}, nil
	}
	return Result[T]{status: status, value: v, hasValue: true}, nil
}

// ErrorWith returns an Error result; status must be 4xx or 5xx.
func ErrorWith[T any](e result.Error, status int) (Result[T], error) {
	if !IsErrorStatus(status) {
		return Result[T]{}, &BadResultError{Status: status}
	}
	return Result[T]{status: status, err: &e}, nil
}

// From converts r into a Result with the given status. It fails right away
// with ErrBadResult when the status class disagrees with r.
func From[T any](r result.Result[T], status int) (Result[T], error) {
	if r.IsOk() {
		v, _ := r.Value()
		return OkWith(v, status)
	}
	e, _ := r.Failure()
	return ErrorWith[T](e, status)
}

// Status returns the HTTP status code. The zero Result reports 0.
func (r Result[T]) Status() int { return r.status }

// IsOk reports whether r is a success.
func (r Result[T]) IsOk() bool { return r.err == nil && r.status != 0 }

// IsError reports whether r carries an Error or is the zero Result.
func (r Result[T]) IsError() bool { return !r.IsOk() }

// HasValue reports whether r carries a value; false for NoContent.
func (r Result[T]) HasValue() bool { return r.hasValue }

// Value returns the carried value. It returns result.ErrInvalidState for an
// Error variant and ErrNoValue for a result without a value.
func (r Result[T]) Value() (T, error) {
	var zero T
	switch {
	case r.err != nil:
		return zero, fmt.Errorf("%w: value read from error result (%d %s)", result.ErrInvalidState, r.status, r.err.Error())
	case r.status == 0:
		return zero, fmt.Errorf("%w: value read from empty result", result.ErrInvalidState)
	case !r.hasValue:
		return zero, fmt.Errorf("%w (status %d)", ErrNoValue, r.status)
	}
	return r.value, nil
}

// Failure returns the carried Error or result.ErrInvalidState for an Ok variant.
func (r Result[T]) Failure() (result.Error, error) {
	switch {
	case r.status == 0:
		return result.Error{}, fmt.Errorf("%w: error read from empty result", result.ErrInvalidState)
	case r.err == nil:
		return result.Error{}, fmt.Errorf("%w: error read from ok result (%d)", result.ErrInvalidState, r.status)
	}
	return *r.err, nil
}

// Result drops the status code. A result without a value becomes Ok with the
// zero value; the zero Result becomes an unhandled Error.
func (r Result[T]) Result() result.Result[T] {
	switch {
	case r.err != nil:
		return result.Err[T](*r.err)
	case r.status == 0:
		return result.Err[T](result.NewError(result.CodeUnhandled, "empty http result"))
	}
	return result.Ok(r.value)
}

// Erase converts r into the untyped form used inside pipelines.
func Erase[T any](r Result[T]) Result[any] {
	out := Result[any]{status: r.status, hasValue: r.hasValue, err: r.err}
	if r.hasValue {
		out.value = r.value
	}
	return out
}

// Restore converts an erased result back to T. Values of type *T are
// dereferenced.
func Restore[T any](r Result[any]) (Result[T], error) {
	out := Result[T]{status: r.status, hasValue: r.hasValue, err: r.err}
	if !r.hasValue {
		return out, nil
	}
	switch v := r.value.(type) {
	case T:
		out.value = v
	case *T:
		if v == nil {
			return Result[T]{}, fmt.Errorf("%w: nil %T", ErrTypeMismatch, v)
		}
		out.value = *v
	default:
		var zero T
		return Result[T]{}, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, r.value, zero)
	}
	return out, nil
}
