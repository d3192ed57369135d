package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

type stubFetcher struct {
	entries []reading.Entry
	err     error
	limit   int
}

func (s *stubFetcher) FetchRecent(_ context.Context, limit int) ([]reading.Entry, error) {
	s.limit = limit
	return s.entries, s.err
}

func entry(key string, updatedAt int64, seat string) reading.Entry {
	return reading.Entry{Key: key, Raw: map[string]any{"updatedAt": updatedAt, "seatStatus": seat}}
}

func TestAggregateScenario(t *testing.T) {
	entries := []reading.Entry{
		{Key: "a", Raw: map[string]any{"updatedAt": 1000, "seatStatus": "occupied", "fsrValue": "3000"}},
		{Key: "b", Raw: map[string]any{"updatedAt": 2000, "seatStatus": "bogus"}},
	}

	w := Aggregate(entries, 0, time.Now())
	require.Len(t, w.Rows, 2)
	assert.Equal(t, reading.SeatOccupied, w.Rows[0].SeatStatus)
	assert.Equal(t, 3000, w.Rows[0].PressureRaw)
	assert.Equal(t, "a", w.Rows[0].Key)
	assert.Equal(t, reading.SeatUnknown, w.Rows[1].SeatStatus)
	assert.Equal(t, 0, w.Rows[1].PressureRaw)
}

func TestLoadHistoryFiltersAndSorts(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ms := now.UnixMilli()
	fetcher := &stubFetcher{entries: []reading.Entry{
		entry("k1", ms-5*60_000, "AVAILABLE"),
		entry("k2", ms-20*60_000, "OCCUPIED"), // outside 10 minutes
		entry("k3", ms-9*60_000, "RESERVED"),
		entry("k4", ms-5*60_000, "OCCUPIED"), // ties with k1
		entry("k5", ms-10*60_000, "AVAILABLE"), // exactly on the cutoff
		entry("k6", 0, "OCCUPIED"),
	}}

	agg := NewAggregator(fetcher, WithClock(func() time.Time { return now }))
	w, err := agg.LoadHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, fetcher.limit)
	assert.Equal(t, 10, w.WindowMinutes)

	keys := make([]string, 0, len(w.Rows))
	for _, r := range w.Rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"k5", "k3", "k1", "k4"}, keys)

	for i := 1; i < len(w.Rows); i++ {
		assert.LessOrEqual(t, w.Rows[i-1].UpdatedAtMs, w.Rows[i].UpdatedAtMs)
	}
}

func TestLoadHistoryFailureReturnsEmptyWindow(t *testing.T) {
	agg := NewAggregator(&stubFetcher{err: errors.New("permission denied")}, WithLimit(50))
	w, err := agg.LoadHistory(context.Background(), 60)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, 60, w.WindowMinutes)
	assert.NotNil(t, w.Rows)
	assert.Empty(t, w.Rows)
	assert.Equal(t, 50, agg.Limit())
}

func TestLoadHistoryCapsOversizedFetch(t *testing.T) {
	entries := make([]reading.Entry, 0, 8)
	for i := 0; i < 8; i++ {
		entries = append(entries, entry(fmt.Sprintf("k%d", i), int64(1000+i), "AVAILABLE"))
	}
	agg := NewAggregator(&stubFetcher{entries: entries}, WithLimit(3))

	w, err := agg.LoadHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, w.Rows, 3)
	assert.Equal(t, "k5", w.Rows[0].Key)
	assert.Equal(t, "k7", w.Rows[2].Key)
}

func TestFilterIdempotent(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ms := now.UnixMilli()
	rows := []reading.Reading{
		{UpdatedAtMs: ms - 59*60_000},
		{UpdatedAtMs: ms - 61*60_000},
		{UpdatedAtMs: ms - 30_000},
		{UpdatedAtMs: ms},
	}

	once := Filter(rows, 60, now)
	twice := Filter(once, 60, now.Add(500*time.Millisecond))
	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}

func TestFilterKeepsEverythingWithoutWindow(t *testing.T) {
	rows := []reading.Reading{{UpdatedAtMs: 0}, {UpdatedAtMs: 5}}
	assert.Equal(t, rows, Filter(rows, 0, time.Now()))
	assert.Empty(t, Filter(nil, 10, time.Now()))
}

func TestTracker(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.Accept(0))

	first := tr.Begin()
	second := tr.Begin()
	assert.False(t, tr.Accept(first))
	assert.True(t, tr.Accept(second))

	tr.Invalidate()
	assert.False(t, tr.Accept(second))
	assert.Greater(t, tr.Latest(), second)
}
