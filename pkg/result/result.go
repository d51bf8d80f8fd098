package result

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when the wrong variant of a result is read.
var ErrInvalidState = errors.New("result: invalid state")

// Result holds either a value or an Error, never both.
//
// The zero Result is an Error variant holding the zero Error; build results
// with Ok or Err.
type Result[T any] struct {
	value T
	err   Error
	ok    bool
}

// Ok returns a success result holding v.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err returns a failure result holding e.
func Err[T any](e Error) Result[T] {
	return Result[T]{err: e}
}

// IsOk reports whether r holds a value.
func (r Result[T]) IsOk() bool { return r.ok }

// IsError reports whether r holds an Error.
func (r Result[T]) IsError() bool { return !r.ok }

// Value returns the held value or ErrInvalidState for an Error variant.
func (r Result[T]) Value() (T, error) {
	if !r.ok {
		var zero T
		return zero, fmt.Errorf("%w: value read from error result (%s)", ErrInvalidState, r.err.Error())
	}
	return r.value, nil
}

// Failure returns the held Error or ErrInvalidState for an Ok variant.
func (r Result[T]) Failure() (Error, error) {
	if r.ok {
		return Error{}, fmt.Errorf("%w: error read from ok result", ErrInvalidState)
	}
	return r.err, nil
}

// MustValue returns the held value and panics for an Error variant.
func (r Result[T]) MustValue() T {
	v, err := r.Value()
	if err != nil {
		panic(err)
	}
	return v
}

// Map applies f to the value of an Ok result and passes errors through.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if !r.ok {
		return Err[U](r.err)
	}
	return Ok(f(r.value))
}

// Equal compares variant and payload.
func Equal[T comparable](a, b Result[T]) bool {
	if a.ok != b.ok {
		return false
	}
	if a.ok {
		return a.value == b.value
	}
	return a.err.Equal(b.err)
}
