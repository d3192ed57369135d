package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// LiveChannel must match the channel the dashboard listens on.
const LiveChannel = "study_space_live"

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS study_space;

CREATE TABLE IF NOT EXISTS study_space.live_readings (
    node       TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS study_space.reading_logs (
    id         BIGSERIAL PRIMARY KEY,
    node       TEXT NOT NULL,
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS reading_logs_node_id_idx
    ON study_space.reading_logs (node, id DESC);
`

// EnsureSchema creates the tables used by the dashboard's postgres backend.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Writer records readings for one node.
type Writer struct {
	pool     *pgxpool.Pool
	livePath string
	logPath  string
}

// NewWriter wraps pool.
func NewWriter(pool *pgxpool.Pool, livePath, logPath string) *Writer {
	return &Writer{pool: pool, livePath: livePath, logPath: logPath}
}

// WriteLive upserts the live record and notifies listeners in one batch.
func (w *Writer) WriteLive(ctx context.Context, r reading.Reading) error {
	payload, err := reading.EncodePayload(r)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO study_space.live_readings (node, payload, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (node) DO UPDATE
SET payload = EXCLUDED.payload,
    updated_at = NOW()`, w.livePath, payload)
	batch.Queue(`SELECT pg_notify($1, $2)`, LiveChannel, w.livePath)

	res := w.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range batch.Len() {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// AppendLog inserts a log row and returns its id.
func (w *Writer) AppendLog(ctx context.Context, r reading.Reading) (string, error) {
	payload, err := reading.EncodePayload(r)
	if err != nil {
		return "", err
	}

	var id int64
	err = w.pool.QueryRow(ctx, `INSERT INTO study_space.reading_logs (node, payload)
VALUES ($1,$2)
RETURNING id`, w.logPath, payload).Scan(&id)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Close releases the pool.
func (w *Writer) Close() error {
	w.pool.Close()
	return nil
}
