package result

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors handlers can wrap to classify a failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind is a coarse failure category.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindUnauthorized
	KindForbidden
	KindConflict
	KindInternal
	KindTimeout
	KindDependencyFailure
	KindCanceled
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindInternal:
		return "Internal"
	case KindTimeout:
		return "Timeout"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Code returns the stable wire code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return CodeNotFound
	case KindValidation:
		return CodeValidation
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	case KindTimeout:
		return "timeout"
	case KindDependencyFailure:
		return "dependency_failure"
	case KindCanceled:
		return "canceled"
	default:
		return CodeUnhandled
	}
}

// kindPriorities is the order KindOf checks in; the first match wins.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, nil},
	{KindNotFound, ErrNotFound},
	{KindValidation, ErrValidation},
	{KindUnauthorized, ErrUnauthorized},
	{KindForbidden, ErrForbidden},
	{KindConflict, ErrConflict},
	{KindDependencyFailure, ErrDependencyFailure},
	{KindInternal, ErrInternal},
}

// KindOf classifies err by walking its chain. Cancellation and timeouts are
// checked first so a canceled call is never reported as a generic failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, p := range kindPriorities {
		switch p.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, p.err) {
				return p.kind
			}
		}
	}
	return KindUnknown
}

// MarkKind wraps err with the sentinel of kind so that KindOf reports it.
// Errors that already have the kind are returned unchanged.
func MarkKind(err error, kind Kind) error {
	var sentinel error
	for _, p := range kindPriorities {
		if p.kind == kind {
			sentinel = p.err
		}
	}
	if sentinel == nil {
		return err
	}
	if err == nil {
		return sentinel
	}
	if KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// IsCanceled reports whether err stems from a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FromError converts err into an Error. An Error found in the chain is
// returned as is; anything else becomes an Error coded by its kind with
// message as the client-safe text and err kept as the cause.
func FromError(err error, message string) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindOf(err).Code(), message, err)
}
