package viewmodel

import (
	"fmt"
	"sync"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
)

// HistoryState is the committed history window plus its load status.
type HistoryState struct {
	Window    history.Window `json:"window"`
	Loading   bool           `json:"loading"`
	Err       string         `json:"error,omitempty"`
	FetchedAt *time.Time     `json:"fetchedAt,omitempty"`
}

// ModeOption is one entry of the data source selector.
type ModeOption struct {
	Value live.Mode `json:"value"`
	Label string    `json:"label"`
}

// WindowOption is one entry of the history window selector.
type WindowOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Snapshot is an immutable copy of the dashboard state.
type Snapshot struct {
	Version       uint64         `json:"version"`
	Mode          live.Mode      `json:"mode"`
	ModeLabel     string         `json:"modeLabel"`
	Modes         []ModeOption   `json:"modes"`
	View          View           `json:"view"`
	WindowMinutes int            `json:"windowMinutes"`
	WindowOptions []WindowOption `json:"windowOptions"`
	Loading       bool           `json:"loading"`
	Live          live.State     `json:"live"`
	History       HistoryState   `json:"history"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// WindowLabel renders a window length for the selector, e.g. "Last 10 min"
// or "Last 6 hours".
func WindowLabel(minutes int) string {
	switch {
	case minutes < 60 || minutes%60 != 0:
		return fmt.Sprintf("Last %d min", minutes)
	case minutes == 60:
		return "Last 1 hour"
	default:
		return fmt.Sprintf("Last %d hours", minutes/60)
	}
}

func windowOptions(values []int) []WindowOption {
	out := make([]WindowOption, 0, len(values))
	for _, v := range values {
		out = append(out, WindowOption{Value: v, Label: WindowLabel(v)})
	}
	return out
}

// broadcaster fans snapshots out to watchers. Each watcher channel holds at
// most the newest unread snapshot.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Snapshot]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Snapshot]struct{})}
}

func (b *broadcaster) subscribe(current func() Snapshot) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	ch <- current()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	return ch, sync.OnceFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	})
}

func (b *broadcaster) publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- s:
		default:
			// drop the unread snapshot in favour of the newer one
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.closed = true
}
