package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/result"
)

// Validator checks a request and returns the failure messages, if any.
type Validator[T any] interface {
	Validate(ctx context.Context, req T) []string
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[T any] func(ctx context.Context, req T) []string

func (f ValidatorFunc[T]) Validate(ctx context.Context, req T) []string { return f(ctx, req) }

type validateFunc func(ctx context.Context, req any) []string

// Validators holds the validators registered per request type. Validators
// are added at start-up; lookups are safe for concurrent use.
type Validators struct {
	mu      sync.RWMutex
	byType  map[reflect.Type][]validateFunc
	structs *validator.Validate
}

// ValidatorsOption configures Validators.
type ValidatorsOption func(*Validators)

// WithStructTags also checks `validate` struct tags before the registered
// validators run.
func WithStructTags() ValidatorsOption {
	return func(vs *Validators) {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		vs.structs = v
	}
}

// NewValidators returns an empty registry.
func NewValidators(opts ...ValidatorsOption) *Validators {
	vs := &Validators{byType: make(map[reflect.Type][]validateFunc)}
	for _, opt := range opts {
		opt(vs)
	}
	return vs
}

// AddValidator registers v for requests of type T. Validators run in the
// order they were added.
func AddValidator[T any](vs *Validators, v Validator[T]) {
	t := reflect.TypeFor[T]()
	fn := func(ctx context.Context, req any) []string {
		switch r := req.(type) {
		case T:
			return v.Validate(ctx, r)
		case *T:
			if r != nil {
				return v.Validate(ctx, *r)
			}
		}
		return nil
	}
	vs.mu.Lock()
	vs.byType[t] = append(vs.byType[t], fn)
	vs.mu.Unlock()
}

// Count returns the number of validators registered for requests like req.
func (vs *Validators) Count(req any) int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.byType[baseType(req)])
}

// Validate runs every validator for the type of req and collects the messages.
func (vs *Validators) Validate(ctx context.Context, req any) []string {
	var msgs []string
	msgs = append(msgs, vs.validateStruct(ctx, req)...)

	vs.mu.RLock()
	fns := vs.byType[baseType(req)]
	vs.mu.RUnlock()

	for _, fn := range fns {
		msgs = append(msgs, fn(ctx, req)...)
	}
	return msgs
}

// First returns the first failure message for req.
func (vs *Validators) First(ctx context.Context, req any) (string, bool) {
	msgs := vs.Validate(ctx, req)
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[0], true
}

func (vs *Validators) validateStruct(ctx context.Context, req any) []string {
	if vs.structs == nil || req == nil {
		return nil
	}
	rv := reflect.ValueOf(req)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := vs.structs.StructCtx(ctx, req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()))
	}
	return out
}

func baseType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// Validation short-circuits with BadRequest carrying the first failure
// message. It belongs after Recover and before the terminal handler.
func Validation(vs *Validators) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call *Call) (httpresult.Result[any], error) {
			if msg, failed := vs.First(ctx, call.Request); failed {
				return httpresult.BadRequest[any](result.NewError(result.CodeValidation, msg)), nil
			}
			return next(ctx, call)
		}
	}
}
