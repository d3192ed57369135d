package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// LiveChannel is the LISTEN/NOTIFY channel announcing live record writes.
// The payload is the node path that changed.
const LiveChannel = "study_space_live"

// Store wraps database access helpers.
type Store struct {
	pool     *pgxpool.Pool
	livePath string
	logPath  string
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL, livePath, logPath string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, livePath: livePath, logPath: logPath}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is satisfied by both the pool and a single connection.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const latestSQL = `
    SELECT payload
    FROM study_space.live_readings
    WHERE node = $1
`

// Latest returns the live record. A missing row is reported as an absent
// update, not an error.
func (s *Store) Latest(ctx context.Context) (live.Update, error) {
	return latest(ctx, s.pool, s.livePath)
}

func latest(ctx context.Context, q querier, node string) (live.Update, error) {
	var payload []byte
	err := q.QueryRow(ctx, latestSQL, node).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return live.Update{}, nil
	}
	if err != nil {
		return live.Update{}, fmt.Errorf("query live reading: %w", err)
	}
	return decodeUpdate(payload)
}

func decodeUpdate(payload []byte) (live.Update, error) {
	raw, err := reading.DecodeRaw(payload)
	if err != nil {
		return live.Update{}, err
	}
	if raw == nil {
		return live.Update{}, nil
	}
	return live.Update{Reading: reading.Normalize(raw), Present: true}, nil
}

// Subscribe implements live.Source. It holds one pooled connection in
// LISTEN mode and re-reads the live row whenever its node is announced.
func (s *Store) Subscribe(ctx context.Context, onUpdate func(live.Update), onError func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := s.listen(ctx, onUpdate); err != nil && ctx.Err() == nil {
			onError(err)
		}
	}()

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}

func (s *Store) listen(ctx context.Context, onUpdate func(live.Update)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{LiveChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", LiveChannel, err)
	}
	defer func() {
		// the connection goes back to the pool; stop receiving on it
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
	}()

	u, err := latest(ctx, conn, s.livePath)
	if err != nil {
		return err
	}
	onUpdate(u)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if n.Payload != s.livePath {
			continue
		}

		u, err := latest(ctx, conn, s.livePath)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		onUpdate(u)
	}
}

const recentLogsSQL = `
    SELECT id, payload
    FROM study_space.reading_logs
    WHERE node = $1
    ORDER BY id DESC
    LIMIT $2
`

// FetchRecent implements history.LogFetcher, returning the newest limit log
// rows oldest first.
func (s *Store) FetchRecent(ctx context.Context, limit int) ([]reading.Entry, error) {
	rows, err := s.pool.Query(ctx, recentLogsSQL, s.logPath, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]reading.Entry, 0, limit)
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}

		raw, err := reading.DecodeRaw(payload)
		if err != nil || raw == nil {
			raw = map[string]any{}
		}
		entries = append(entries, reading.Entry{Key: strconv.FormatInt(id, 10), Raw: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(entries)
	return entries, nil
}
