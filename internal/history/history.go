package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// DefaultLimit bounds how many recent log entries are retrieved per load.
// The store has no server-side time index, so the window is applied after
// retrieval.
const DefaultLimit = 500

// ErrFetch marks a failed log retrieval. The aggregator still returns an
// empty window alongside it.
var ErrFetch = errors.New("history: fetch failed")

// LogFetcher retrieves the most recent raw log entries, in retrieval order.
type LogFetcher interface {
	FetchRecent(ctx context.Context, limit int) ([]reading.Entry, error)
}

// Window is a trailing slice of readings ordered by UpdatedAtMs ascending.
type Window struct {
	WindowMinutes int               `json:"windowMinutes"`
	Rows          []reading.Reading `json:"rows"`
}

// Len returns the number of rows.
func (w Window) Len() int {
	return len(w.Rows)
}

// Aggregator loads history windows from a LogFetcher.
type Aggregator struct {
	fetcher LogFetcher
	limit   int
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLimit overrides DefaultLimit.
func WithLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.limit = limit
		}
	}
}

// WithClock overrides the wall clock used for the window cutoff.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator constructs an aggregator over fetcher.
func NewAggregator(fetcher LogFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{fetcher: fetcher, limit: DefaultLimit, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Limit returns the retrieval bound.
func (a *Aggregator) Limit() int {
	return a.limit
}

// LoadHistory fetches recent entries and shapes them into a window of
// windowMinutes. On failure it returns an empty window and an error wrapping
// ErrFetch; it never retries.
func (a *Aggregator) LoadHistory(ctx context.Context, windowMinutes int) (Window, error) {
	empty := Window{WindowMinutes: windowMinutes, Rows: []reading.Reading{}}

	entries, err := a.fetcher.FetchRecent(ctx, a.limit)
	if err != nil {
		return empty, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(entries) > a.limit {
		entries = entries[len(entries)-a.limit:]
	}

	return Aggregate(entries, windowMinutes, a.now()), nil
}

// Aggregate normalizes entries, keeps those inside the window ending at now
// and sorts them ascending by timestamp. Ties keep retrieval order.
// A windowMinutes of zero or less keeps every entry.
func Aggregate(entries []reading.Entry, windowMinutes int, now time.Time) Window {
	rows := make([]reading.Reading, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, reading.NormalizeEntry(e.Key, e.Raw))
	}

	rows = Filter(rows, windowMinutes, now)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].UpdatedAtMs < rows[j].UpdatedAtMs
	})

	return Window{WindowMinutes: windowMinutes, Rows: rows}
}

// Cutoff returns the oldest timestamp (ms) kept by a window ending at now.
func Cutoff(windowMinutes int, now time.Time) int64 {
	return now.UnixMilli() - int64(windowMinutes)*time.Minute.Milliseconds()
}

// Filter keeps rows with UpdatedAtMs >= Cutoff(windowMinutes, now), in order.
func Filter(rows []reading.Reading, windowMinutes int, now time.Time) []reading.Reading {
	out := make([]reading.Reading, 0, len(rows))
	if windowMinutes <= 0 {
		return append(out, rows...)
	}

	cutoff := Cutoff(windowMinutes, now)
	for _, r := range rows {
		if r.UpdatedAtMs >= cutoff {
			out = append(out, r)
		}
	}
	return out
}
