// Package viewmodel hosts the dashboard state. A single goroutine owns the
// live state and the history window; commands, live notifications and
// history results all reach it as messages.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// View is the active dashboard tab.
type View string

const (
	ViewLive    View = "live"
	ViewHistory View = "history"
)

var (
	ErrInvalidMode   = errors.New("viewmodel: invalid mode")
	ErrInvalidView   = errors.New("viewmodel: invalid view")
	ErrInvalidWindow = errors.New("viewmodel: invalid window")
	ErrStopped       = errors.New("viewmodel: dashboard stopped")
)

// DefaultWindowOptions are the selectable history windows in minutes.
var DefaultWindowOptions = []int{10, 60, 360, 1440}

const (
	DefaultWindowMinutes     = 60
	DefaultFetchTimeout      = 15 * time.Second
	DefaultFreshnessInterval = time.Second
)

// ParseView accepts a tab name.
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewLive, ViewHistory:
		return View(s), true
	default:
		return "", false
	}
}

// HistoryLoader produces history windows. *history.Aggregator satisfies it.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, windowMinutes int) (history.Window, error)
}

// Config tunes a Dashboard. Zero values fall back to the package defaults.
type Config struct {
	Mode              live.Mode
	View              View
	WindowOptions     []int
	WindowMinutes     int
	OnlineTimeout     time.Duration
	FetchTimeout      time.Duration
	FreshnessInterval time.Duration
	ModeLabels        map[live.Mode]string
	Now               func() time.Time
	Logger            *logger.Logger
}

type command struct {
	apply func() error
	reply chan error
}

type historyResult struct {
	token         history.Token
	windowMinutes int
	window        history.Window
	err           error
	elapsed       time.Duration
}

// Dashboard is the view model of the seat monitor.
type Dashboard struct {
	cfg    Config
	loader HistoryLoader
	log    *logger.Logger
	now    func() time.Time

	cmds    chan command
	events  chan live.Event
	results chan historyResult
	done    chan struct{}
	started atomic.Bool

	snap      atomic.Pointer[Snapshot]
	broadcast *broadcaster

	// owned by the Run goroutine
	runCtx        context.Context
	adapter       *live.Adapter
	mode          live.Mode
	view          View
	windowMinutes int
	tracker       history.Tracker
	fetchCancel   context.CancelFunc
	hist          HistoryState
	version       uint64
}

// New builds a dashboard over the given live sources and history loader.
// It does nothing until Run is called.
func New(sources map[live.Mode]live.Source, loader HistoryLoader, cfg Config) (*Dashboard, error) {
	if cfg.Mode == "" {
		cfg.Mode = live.ModeExternal
	}
	if cfg.View == "" {
		cfg.View = ViewLive
	}
	if len(cfg.WindowOptions) == 0 {
		cfg.WindowOptions = DefaultWindowOptions
	}
	cfg.WindowOptions = slices.Clone(cfg.WindowOptions)
	if cfg.WindowMinutes == 0 {
		cfg.WindowMinutes = DefaultWindowMinutes
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.FreshnessInterval <= 0 {
		cfg.FreshnessInterval = DefaultFreshnessInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetDefault()
	}

	if _, ok := sources[cfg.Mode]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
	if _, ok := ParseView(string(cfg.View)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidView, cfg.View)
	}
	if !slices.Contains(cfg.WindowOptions, cfg.WindowMinutes) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, cfg.WindowMinutes)
	}

	d := &Dashboard{
		cfg:           cfg,
		loader:        loader,
		log:           cfg.Logger.WithComponent("viewmodel"),
		now:           cfg.Now,
		cmds:          make(chan command),
		events:        make(chan live.Event, 16),
		results:       make(chan historyResult, 4),
		done:          make(chan struct{}),
		broadcast:     newBroadcaster(),
		adapter:       live.NewAdapter(sources, cfg.OnlineTimeout),
		mode:          cfg.Mode,
		view:          cfg.View,
		windowMinutes: cfg.WindowMinutes,
		hist:          HistoryState{Window: emptyWindow(cfg.WindowMinutes)},
	}
	d.publish()
	return d, nil
}

// Run owns the dashboard state until ctx is done. The active live
// subscription and any in-flight history load are released before it
// returns. Run may be called once.
func (d *Dashboard) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("viewmodel: Run called twice")
	}
	defer close(d.done)

	d.runCtx = ctx
	defer d.shutdown()

	if err := d.activate(d.mode); err != nil {
		return err
	}
	d.requestHistory()
	d.publish()

	ticker := time.NewTicker(d.cfg.FreshnessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-d.cmds:
			cmd.reply <- cmd.apply()
		case ev := <-d.events:
			d.handleLive(ev)
		case res := <-d.results:
			d.handleHistory(res)
		case <-ticker.C:
			if d.adapter.Refresh(d.now()) {
				d.publish()
			}
		}
	}
}

func (d *Dashboard) shutdown() {
	d.adapter.Deactivate()
	if d.fetchCancel != nil {
		d.fetchCancel()
		d.fetchCancel = nil
	}
	d.broadcast.closeAll()
}

// Done is closed once Run has returned.
func (d *Dashboard) Done() <-chan struct{} {
	return d.done
}

// Snapshot returns the latest published state.
func (d *Dashboard) Snapshot() Snapshot {
	return *d.snap.Load()
}

// Watch streams snapshots. The channel holds only the newest unread
// snapshot and is closed when cancel is called or Run returns.
func (d *Dashboard) Watch() (<-chan Snapshot, func()) {
	return d.broadcast.subscribe(d.Snapshot)
}

// SetMode switches the live source. The previous subscription is released
// before the new one is created. Selecting the current mode again only
// resubscribes when its channel has failed.
func (d *Dashboard) SetMode(ctx context.Context, mode live.Mode) error {
	return d.do(ctx, func() error {
		if mode == d.mode {
			if !d.adapter.Failed() {
				return nil
			}
			if err := d.activate(mode); err != nil {
				return err
			}
			d.log.InfoContext(d.runCtx, "live subscription reopened", "mode", string(mode))
			d.publish()
			return nil
		}
		from := d.mode
		// Activate rejects unknown modes before touching the current source.
		if err := d.activate(mode); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMode, err)
		}
		d.mode = mode
		d.log.LogModeSwitch(d.runCtx, string(from), string(mode))
		d.requestHistory()
		d.publish()
		return nil
	})
}

// SetActiveView switches the dashboard tab.
func (d *Dashboard) SetActiveView(ctx context.Context, view View) error {
	if _, ok := ParseView(string(view)); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	return d.do(ctx, func() error {
		if view == d.view {
			return nil
		}
		d.view = view
		d.requestHistory()
		d.publish()
		return nil
	})
}

// SetWindowMinutes selects the history window. n must be one of the
// configured options.
func (d *Dashboard) SetWindowMinutes(ctx context.Context, n int) error {
	if !slices.Contains(d.cfg.WindowOptions, n) {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, n)
	}
	return d.do(ctx, func() error {
		if n == d.windowMinutes {
			return nil
		}
		d.windowMinutes = n
		d.requestHistory()
		d.publish()
		return nil
	})
}

// RefreshHistory reloads the current window.
func (d *Dashboard) RefreshHistory(ctx context.Context) error {
	return d.do(ctx, func() error {
		d.requestHistory()
		d.publish()
		return nil
	})
}

func (d *Dashboard) do(ctx context.Context, apply func() error) error {
	cmd := command{apply: apply, reply: make(chan error, 1)}
	select {
	case d.cmds <- cmd:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// the loop always answers a command it accepted
	return <-cmd.reply
}

func (d *Dashboard) activate(mode live.Mode) error {
	if err := d.adapter.Activate(d.runCtx, mode, d.deliver); err != nil {
		return err
	}
	metrics.IncModeSwitch(string(mode))
	return nil
}

func (d *Dashboard) deliver(ctx context.Context, ev live.Event) {
	select {
	case d.events <- ev:
	case <-ctx.Done():
	}
}

func (d *Dashboard) handleLive(ev live.Event) {
	now := d.now()
	if !d.adapter.Handle(ev, now) {
		return
	}

	mode := string(d.adapter.Mode())
	st := d.adapter.State()
	switch {
	case ev.Err != nil:
		metrics.IncChannelFailure("live")
		d.log.LogLiveFailure(d.runCtx, mode, ev.Err)
	case st.Reading != nil:
		metrics.IncLiveUpdate(mode)
	}

	var at time.Time
	if st.Reading != nil {
		at = st.Reading.UpdatedAt()
	}
	metrics.SetOnline(st.Online, at, now)
	d.publish()
}

// requestHistory re-evaluates what the history tab should show. Any
// outstanding request is superseded and its fetch cancelled.
func (d *Dashboard) requestHistory() {
	if d.fetchCancel != nil {
		d.fetchCancel()
		d.fetchCancel = nil
	}

	if d.mode != live.ModeExternal || d.loader == nil {
		d.tracker.Invalidate()
		d.hist = HistoryState{Window: emptyWindow(d.windowMinutes)}
		return
	}
	if d.view != ViewHistory {
		d.tracker.Invalidate()
		if d.hist.Window.WindowMinutes != d.windowMinutes {
			d.hist = HistoryState{Window: emptyWindow(d.windowMinutes)}
		}
		d.hist.Loading = false
		return
	}

	tok := d.tracker.Begin()
	ctx, cancel := context.WithTimeout(d.runCtx, d.cfg.FetchTimeout)
	d.fetchCancel = cancel
	d.hist.Loading = true

	windowMinutes := d.windowMinutes
	go func() {
		defer cancel()
		start := time.Now()
		w, err := d.loader.LoadHistory(ctx, windowMinutes)
		res := historyResult{
			token:         tok,
			windowMinutes: windowMinutes,
			window:        w,
			err:           err,
			elapsed:       time.Since(start),
		}
		select {
		case d.results <- res:
		case <-d.done:
		}
	}()
}

func (d *Dashboard) handleHistory(res historyResult) {
	if !d.tracker.Accept(res.token) {
		metrics.IncHistoryStale()
		d.log.LogStaleResult(d.runCtx, res.windowMinutes, uint64(res.token))
		return
	}
	d.fetchCancel = nil

	now := d.now()
	next := HistoryState{Window: res.window, FetchedAt: &now}
	if next.Window.Rows == nil {
		next.Window = emptyWindow(res.windowMinutes)
	}
	if res.err != nil {
		next.Err = res.err.Error()
	}
	d.hist = next

	metrics.ObserveHistoryFetch(res.err, res.window.Len(), res.elapsed)
	d.log.LogHistoryFetch(d.runCtx, res.windowMinutes, res.window.Len(), res.elapsed, res.err)
	d.publish()
}

func (d *Dashboard) publish() {
	d.version++
	st := d.adapter.State()

	snap := &Snapshot{
		Version:       d.version,
		Mode:          d.mode,
		ModeLabel:     d.modeLabel(d.mode),
		Modes:         d.modeOptions(),
		View:          d.view,
		WindowMinutes: d.windowMinutes,
		WindowOptions: windowOptions(d.cfg.WindowOptions),
		Live:          st,
		History:       d.hist,
		GeneratedAt:   d.now(),
	}
	if d.view == ViewHistory {
		snap.Loading = d.hist.Loading
	} else {
		snap.Loading = st.Loading
	}

	d.snap.Store(snap)
	d.broadcast.publish(*snap)
}

func (d *Dashboard) modeLabel(m live.Mode) string {
	if label, ok := d.cfg.ModeLabels[m]; ok && label != "" {
		return label
	}
	switch m {
	case live.ModeSynthetic:
		return "Fake Data"
	case live.ModeExternal:
		return "External"
	default:
		return string(m)
	}
}

func (d *Dashboard) modeOptions() []ModeOption {
	return []ModeOption{
		{Value: live.ModeExternal, Label: d.modeLabel(live.ModeExternal)},
		{Value: live.ModeSynthetic, Label: d.modeLabel(live.ModeSynthetic)},
	}
}

func emptyWindow(windowMinutes int) history.Window {
	return history.Window{WindowMinutes: windowMinutes, Rows: []reading.Reading{}}
}
