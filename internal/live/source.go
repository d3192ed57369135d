package live

import (
	"context"
	"errors"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// ErrChannel marks a failure of the live subscription channel. It is always
// recoverable: the adapter clears the reading and reports the node offline.
var ErrChannel = errors.New("live: channel failure")

// Update is one notification from a live source. Present is false when the
// external record does not exist (or was deleted).
type Update struct {
	Reading reading.Reading
	Present bool
}

// Source delivers live readings until the returned release function is called.
//
// Implementations must make release idempotent and synchronous: once it
// returns, neither callback runs again. Callbacks are invoked from a goroutine
// owned by the source, never from within Subscribe itself, and must return
// promptly once ctx is done.
type Source interface {
	Subscribe(ctx context.Context, onUpdate func(Update), onError func(error)) (release func())
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, onUpdate func(Update), onError func(error)) func()

// Subscribe implements Source.
func (f SourceFunc) Subscribe(ctx context.Context, onUpdate func(Update), onError func(error)) func() {
	return f(ctx, onUpdate, onError)
}
