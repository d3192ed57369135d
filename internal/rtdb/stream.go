package rtdb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// DefaultRetryDelay is the pause before reopening an interrupted stream.
const DefaultRetryDelay = 2 * time.Second

// ErrRejected marks a stream the server refused or cancelled. It is not
// retried.
var ErrRejected = errors.New("rtdb: stream rejected")

const maxEventSize = 1 << 20

// Stream follows one database location over the REST event stream.
type Stream struct {
	url        string
	client     *http.Client
	retryDelay time.Duration
	log        *logger.Logger
}

// NewStream builds a stream over cfg.LivePath.
func NewStream(cfg Config) *Stream {
	u := restURL(cfg.DatabaseURL, cfg.LivePath)
	if cfg.AuthToken != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "auth=" + url.QueryEscape(cfg.AuthToken)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}

	return &Stream{
		url:        u,
		client:     client,
		retryDelay: retry,
		log:        logger.GetDefault().WithComponent("rtdb"),
	}
}

// Subscribe implements live.Source. Dropped connections are reopened after
// the retry delay; a rejected or cancelled stream is reported through
// onError and ends the subscription.
func (s *Stream) Subscribe(ctx context.Context, onUpdate func(live.Update), onError func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.run(ctx, onUpdate, onError)
	}()

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}

func (s *Stream) run(ctx context.Context, onUpdate func(live.Update), onError func(error)) {
	for {
		err := s.follow(ctx, onUpdate)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrRejected) {
			onError(err)
			return
		}

		s.log.WarnContext(ctx, "event stream interrupted, reconnecting",
			"error", err, "retry_in", s.retryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

// follow reads one connection until it fails. The server starts every
// connection with a full put of the location, so the document is rebuilt
// per connection.
func (s *Stream) follow(ctx context.Context, onUpdate func(live.Update)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s", ErrRejected, resp.Status, bytes.TrimSpace(body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("event stream: unexpected status %s", resp.Status)
	}

	var (
		doc   any
		event string
		data  strings.Builder
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" {
				next, emit, err := dispatch(doc, event, data.String())
				if err != nil {
					return err
				}
				doc = next
				if emit && ctx.Err() == nil {
					onUpdate(updateFrom(doc))
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

type streamPayload struct {
	Path string `json:"path"`
	Data any    `json:"data"`
}

// dispatch applies one server event to doc. It reports whether the
// document changed.
func dispatch(doc any, event, data string) (any, bool, error) {
	switch event {
	case "put", "patch":
		dec := json.NewDecoder(strings.NewReader(data))
		dec.UseNumber()

		var p streamPayload
		if err := dec.Decode(&p); err != nil {
			return doc, false, fmt.Errorf("decode %s event: %w", event, err)
		}
		return applyPath(doc, p.Path, p.Data, event == "patch"), true, nil
	case "cancel":
		return doc, false, fmt.Errorf("%w: cancelled: %s", ErrRejected, data)
	case "auth_revoked":
		return doc, false, fmt.Errorf("%w: auth revoked", ErrRejected)
	default:
		// keep-alive and anything newer
		return doc, false, nil
	}
}

func updateFrom(doc any) live.Update {
	raw := reading.AsRecord(doc)
	if raw == nil {
		return live.Update{}
	}
	return live.Update{Reading: reading.Normalize(raw), Present: true}
}

// applyPath writes data at path inside doc. A patch merges the children of
// data instead of replacing the location. Null values delete.
func applyPath(doc any, path string, data any, merge bool) any {
	segs := splitPath(path)
	if !merge {
		return setPath(doc, segs, data)
	}

	children, _ := data.(map[string]any)
	for k, v := range children {
		doc = setPath(doc, append(slices.Clone(segs), splitPath(k)...), v)
	}
	return doc
}

func setPath(doc any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}

	m, ok := doc.(map[string]any)
	if !ok {
		if v == nil {
			return doc
		}
		m = map[string]any{}
	}

	child := setPath(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}

	if len(m) == 0 {
		return nil
	}
	return m
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
