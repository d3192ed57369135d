package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// DefaultOnlineTimeout is the freshness threshold for an online node.
const DefaultOnlineTimeout = 15 * time.Second

// Mode selects which live source feeds the adapter.
type Mode string

const (
	ModeSynthetic Mode = "fake"
	ModeExternal  Mode = "external"
)

// ErrUnknownMode is returned when no source is registered for a mode.
var ErrUnknownMode = errors.New("live: unknown mode")

// ParseMode accepts the mode names used by the dashboard shell.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "fake", "synthetic":
		return ModeSynthetic, true
	case "external", "firebase":
		return ModeExternal, true
	default:
		return "", false
	}
}

// State is the live view model. It is replaced wholesale on every change.
type State struct {
	Reading *reading.Reading `json:"reading"`
	Online  bool             `json:"online"`
	Loading bool             `json:"loading"`
	Err     string           `json:"error,omitempty"`
}

// IsOnline reports whether r exists and is younger than timeout at now.
func IsOnline(r *reading.Reading, now time.Time, timeout time.Duration) bool {
	if r == nil {
		return false
	}
	return now.UnixMilli()-r.UpdatedAtMs < timeout.Milliseconds()
}

// Event is a source notification tagged with the subscription generation
// that produced it.
type Event struct {
	Gen    uint64
	Update Update
	Err    error
}

// Adapter holds the live state and the single active subscription.
// It is not safe for concurrent use; the view model loop owns it.
type Adapter struct {
	sources map[Mode]Source
	timeout time.Duration

	mode    Mode
	gen     uint64
	cancel  context.CancelFunc
	release func()
	state   State
}

// NewAdapter returns an inactive adapter over the given sources.
func NewAdapter(sources map[Mode]Source, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultOnlineTimeout
	}
	return &Adapter{sources: sources, timeout: timeout}
}

// Mode returns the active mode, or "" when inactive.
func (a *Adapter) Mode() Mode {
	return a.mode
}

// State returns the current live state.
func (a *Adapter) State() State {
	return a.state
}

// Failed reports whether the active subscription ended with a channel
// failure. Sources deliver nothing after a failure, so the mode must be
// activated again to resume.
func (a *Adapter) Failed() bool {
	return a.release != nil && a.state.Err != ""
}

// Activate releases any active subscription, then subscribes to the source
// registered for mode. Events are handed to deliver, which must give up once
// its ctx is done.
func (a *Adapter) Activate(ctx context.Context, mode Mode, deliver func(context.Context, Event)) error {
	src, ok := a.sources[mode]
	if !ok || src == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	a.Deactivate()

	a.gen++
	gen := a.gen
	subCtx, cancel := context.WithCancel(ctx)

	a.mode = mode
	a.cancel = cancel
	a.state = State{Loading: true}
	a.release = src.Subscribe(subCtx,
		func(u Update) { deliver(subCtx, Event{Gen: gen, Update: u}) },
		func(err error) { deliver(subCtx, Event{Gen: gen, Err: err}) },
	)
	return nil
}

// Deactivate releases the active subscription, if any. It is synchronous:
// the source emits nothing once it returns.
func (a *Adapter) Deactivate() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.release != nil {
		a.release()
		a.release = nil
	}
	a.mode = ""
	a.state = State{}
}

// Handle applies ev at now. It returns false when ev belongs to a released
// subscription and was ignored.
func (a *Adapter) Handle(ev Event, now time.Time) bool {
	if a.release == nil || ev.Gen != a.gen {
		return false
	}

	if ev.Err != nil {
		err := ev.Err
		if !errors.Is(err, ErrChannel) {
			err = fmt.Errorf("%w: %w", ErrChannel, err)
		}
		a.state = State{Err: err.Error()}
		return true
	}

	if !ev.Update.Present {
		a.state = State{}
		return true
	}

	r := ev.Update.Reading
	a.state = State{
		Reading: &r,
		Online:  IsOnline(&r, now, a.timeout),
	}
	return true
}

// Refresh re-evaluates freshness at now. It reports whether the online flag
// changed.
func (a *Adapter) Refresh(now time.Time) bool {
	online := IsOnline(a.state.Reading, now, a.timeout)
	if online == a.state.Online {
		return false
	}
	next := a.state
	next.Online = online
	a.state = next
	return true
}
