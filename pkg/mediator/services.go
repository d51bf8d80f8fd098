package mediator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyAdded is returned when a service is added twice to the same
// composition root.
var ErrAlreadyAdded = errors.New("mediator: services already added")

// ErrNotAdded is returned when a service is looked up before it was added.
var ErrNotAdded = errors.New("mediator: services not added")

// Services is an explicit composition root. The client and server packages
// add their singletons to it once at start-up.
type Services struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewServices returns an empty composition root.
func NewServices() *Services {
	return &Services{items: make(map[string]any)}
}

// Add stores v under key. A second Add with the same key fails with
// ErrAlreadyAdded and leaves the first value in place.
func (s *Services) Add(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyAdded, key)
	}
	s.items[key] = v
	return nil
}

// Get returns the value stored under key.
func (s *Services) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Lookup returns the value stored under key as T.
func Lookup[T any](s *Services, key string) (T, error) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotAdded, key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("mediator: service %s has type %T", key, v)
	}
	return t, nil
}
