// Package journal persists the calls dispatched by the server mediator and
// exposes them through a mediator contract.
package journal

import (
	"context"
	"embed"
	"errors"
	"time"

	"httpmediator/pkg/mediator/server"
)

//go:embed migrations
var migrations embed.FS

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("journal: store closed")

// DefaultLimit and MaxLimit bound Recent.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Filter narrows Recent.
type Filter struct {
	// URI keeps only calls to this contract URI when set.
	URI   string
	Limit int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	}
	return f.Limit
}

// Store is a journal backend.
type Store interface {
	server.Recorder
	// Recent returns the newest entries first.
	Recent(ctx context.Context, f Filter) ([]server.Entry, error)
	// Prune deletes entries recorded before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
