package httpresult

import (
	"net/http"

	"httpmediator/pkg/result"
)

// Named constructors for common statuses. They cannot produce a mismatched
// pair, so they return the Result directly.

// OK returns Ok(v, 200).
func OK[T any](v T) Result[T] { return ok(v, http.StatusOK) }

// Created returns Ok(v, 201).
func Created[T any](v T) Result[T] { return ok(v, http.StatusCreated) }

// Accepted returns Ok(v, 202).
func Accepted[T any](v T) Result[T] { return ok(v, http.StatusAccepted) }

// NoContent returns a 204 success without a value.
func NoContent[T any]() Result[T] { return Result[T]{status: http.StatusNoContent} }

// BadRequest returns Error(e, 400).
func BadRequest[T any](e result.Error) Result[T] { return fail[T](e, http.StatusBadRequest) }

// Unauthorized returns Error(e, 401).
func Unauthorized[T any](e result.Error) Result[T] { return fail[T](e, http.StatusUnauthorized) }

// Forbidden returns Error(e, 403).
func Forbidden[T any](e result.Error) Result[T] { return fail[T](e, http.StatusForbidden) }

// NotFound returns Error(e, 404).
func NotFound[T any](e result.Error) Result[T] { return fail[T](e, http.StatusNotFound) }

// Conflict returns Error(e, 409).
func Conflict[T any](e result.Error) Result[T] { return fail[T](e, http.StatusConflict) }

// UnprocessableEntity returns Error(e, 422).
func UnprocessableEntity[T any](e result.Error) Result[T] {
	return fail[T](e, http.StatusUnprocessableEntity)
}

// TooManyRequests returns Error(e, 429).
func TooManyRequests[T any](e result.Error) Result[T] { return fail[T](e, http.StatusTooManyRequests) }

// InternalServerError returns Error(e, 500).
func InternalServerError[T any](e result.Error) Result[T] {
	return fail[T](e, http.StatusInternalServerError)
}

// ServiceUnavailable returns Error(e, 503).
func ServiceUnavailable[T any](e result.Error) Result[T] {
	return fail[T](e, http.StatusServiceUnavailable)
}

func ok[T any](v T, status int) Result[T] {
	return Result[T]{status: status, value: v, hasValue: true}
}

func fail[T any](e result.Error, status int) Result[T] {
	return Result[T]{status: status, err: &e}
}
