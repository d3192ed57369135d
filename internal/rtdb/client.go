// Package rtdb talks to a Firebase Realtime Database: the live record is
// followed over the REST event stream, the log is read and written with the
// Admin SDK.
package rtdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// Config describes the database and the two node paths.
type Config struct {
	DatabaseURL     string
	LivePath        string
	LogPath         string
	CredentialsFile string
	AuthToken       string
	HTTPClient      *http.Client
	RetryDelay      time.Duration
}

// Client is a live source, log fetcher and writer over one database.
type Client struct {
	db     *db.Client
	stream *Stream
	cfg    Config
}

// New initialises the Admin SDK. Without a credentials file the database is
// accessed unauthenticated, which suits rules that allow public reads.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase database url cannot be empty")
	}
	if cfg.LivePath == "" || cfg.LogPath == "" {
		return nil, errors.New("firebase live and log paths are required")
	}

	opts := []option.ClientOption{option.WithoutAuthentication()}
	if cfg.CredentialsFile != "" {
		opts = []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	dbc, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase database: %w", err)
	}

	return &Client{
		db:     dbc,
		stream: NewStream(cfg),
		cfg:    cfg,
	}, nil
}

// Subscribe implements live.Source over the REST event stream.
func (c *Client) Subscribe(ctx context.Context, onUpdate func(live.Update), onError func(error)) func() {
	return c.stream.Subscribe(ctx, onUpdate, onError)
}

// FetchRecent implements history.LogFetcher. Push keys sort chronologically,
// so ordering by key and keeping the last limit children yields the newest
// entries, oldest first.
func (c *Client) FetchRecent(ctx context.Context, limit int) ([]reading.Entry, error) {
	nodes, err := c.db.NewRef(c.cfg.LogPath).OrderByKey().LimitToLast(limit).GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.cfg.LogPath, err)
	}
	return entriesFromNodes(nodes), nil
}

// node is the part of db.QueryNode used here.
type node interface {
	Key() string
	Unmarshal(v interface{}) error
}

func entriesFromNodes[N node](nodes []N) []reading.Entry {
	entries := make([]reading.Entry, 0, len(nodes))
	for _, n := range nodes {
		var v any
		// a child that does not decode still yields a (default) reading
		_ = n.Unmarshal(&v)

		raw := reading.AsRecord(v)
		if raw == nil {
			raw = map[string]any{}
		}
		entries = append(entries, reading.Entry{Key: n.Key(), Raw: raw})
	}
	return entries
}

// WriteLive replaces the live record.
func (c *Client) WriteLive(ctx context.Context, r reading.Reading) error {
	if err := c.db.NewRef(c.cfg.LivePath).Set(ctx, r.Payload()); err != nil {
		return fmt.Errorf("set %s: %w", c.cfg.LivePath, err)
	}
	return nil
}

// AppendLog pushes r under the log path and returns its key.
func (c *Client) AppendLog(ctx context.Context, r reading.Reading) (string, error) {
	ref, err := c.db.NewRef(c.cfg.LogPath).Push(ctx, r.Payload())
	if err != nil {
		return "", fmt.Errorf("push %s: %w", c.cfg.LogPath, err)
	}
	return ref.Key, nil
}

// Close is a no-op; the SDK holds no connections that need releasing.
func (c *Client) Close() error {
	return nil
}

// restURL maps a location onto its REST endpoint, keeping any query string
// of the database url (emulators use ?ns=).
func restURL(base, path string) string {
	query := ""
	if i := strings.Index(base, "?"); i >= 0 {
		base, query = base[:i], base[i:]
	}
	return strings.TrimRight(base, "/") + "/" + strings.Trim(path, "/") + ".json" + query
}
