// Package redisstore keeps the live record and the reading log in Redis.
// The live record is a JSON string key whose writes are announced on a
// pub/sub channel; the log is a stream.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

const (
	keyPrefix    = "study_space:"
	payloadField = "payload"

	// DefaultMaxLogLen caps the stream length on append.
	DefaultMaxLogLen = 10000
)

// Config holds the Redis connection and key layout.
type Config struct {
	Addr     string
	Password string
	DB       int
	LivePath string
	LogPath  string
}

// Store is a Redis-backed live source, log fetcher and writer.
type Store struct {
	client  *redis.Client
	liveKey string
	channel string
	stream  string
	maxLen  int64
	log     *logger.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return NewWithClient(client, cfg.LivePath, cfg.LogPath), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, livePath, logPath string) *Store {
	liveKey := Key(livePath)
	return &Store{
		client:  client,
		liveKey: liveKey,
		channel: liveKey + ":updates",
		stream:  Key(logPath),
		maxLen:  DefaultMaxLogLen,
		log:     logger.GetDefault().WithComponent("redisstore"),
	}
}

// Key maps a slash separated store path onto a Redis key.
func Key(path string) string {
	return keyPrefix + strings.ReplaceAll(strings.Trim(path, "/"), "/", ":")
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Subscribe implements live.Source. It emits the current record once the
// channel subscription is confirmed, then every announced write. An empty
// announcement means the record was deleted.
func (s *Store) Subscribe(ctx context.Context, onUpdate func(live.Update), onError func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		pubsub := s.client.Subscribe(ctx, s.channel)
		defer pubsub.Close()

		if _, err := pubsub.Receive(ctx); err != nil {
			if ctx.Err() == nil {
				onError(fmt.Errorf("subscribe %s: %w", s.channel, err))
			}
			return
		}

		u, err := s.current(ctx)
		if err != nil {
			if ctx.Err() == nil {
				onError(err)
			}
			return
		}
		onUpdate(u)

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					if ctx.Err() == nil {
						onError(fmt.Errorf("subscription %s closed", s.channel))
					}
					return
				}
				u, err := decodeUpdate([]byte(msg.Payload))
				if err != nil {
					s.log.WarnContext(ctx, "dropping malformed live payload", "error", err)
					continue
				}
				if ctx.Err() != nil {
					return
				}
				onUpdate(u)
			}
		}
	}()

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}

func (s *Store) current(ctx context.Context) (live.Update, error) {
	b, err := s.client.Get(ctx, s.liveKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return live.Update{}, nil
	}
	if err != nil {
		return live.Update{}, fmt.Errorf("get %s: %w", s.liveKey, err)
	}
	return decodeUpdate(b)
}

func decodeUpdate(b []byte) (live.Update, error) {
	raw, err := reading.DecodeRaw(b)
	if err != nil {
		return live.Update{}, err
	}
	if raw == nil {
		return live.Update{}, nil
	}
	return live.Update{Reading: reading.Normalize(raw), Present: true}, nil
}

// FetchRecent implements history.LogFetcher, returning the newest limit
// stream entries oldest first.
func (s *Store) FetchRecent(ctx context.Context, limit int) ([]reading.Entry, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", s.stream, err)
	}
	slices.Reverse(msgs)

	entries := make([]reading.Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, entryFromMessage(m))
	}
	return entries, nil
}

// entryFromMessage never fails; an unreadable payload normalizes to
// defaults like any other malformed record.
func entryFromMessage(m redis.XMessage) reading.Entry {
	e := reading.Entry{Key: m.ID, Raw: map[string]any{}}

	var b []byte
	switch v := m.Values[payloadField].(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return e
	}

	if raw, err := reading.DecodeRaw(b); err == nil && raw != nil {
		e.Raw = raw
	}
	return e
}

// WriteLive replaces the live record and announces the write.
func (s *Store) WriteLive(ctx context.Context, r reading.Reading) error {
	b, err := reading.EncodePayload(r)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.liveKey, b, 0)
		pipe.Publish(ctx, s.channel, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.liveKey, err)
	}
	return nil
}

// AppendLog adds r to the log stream and returns the entry id.
func (s *Store) AppendLog(ctx context.Context, r reading.Reading) (string, error) {
	b, err := reading.EncodePayload(r)
	if err != nil {
		return "", err
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: string(b)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return id, nil
}
