package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

func TestDecodeUpdate(t *testing.T) {
	u, err := decodeUpdate([]byte(`{"seatStatus":"reserved","distance_cm":"22.5","updatedAt":1000}`))
	require.NoError(t, err)
	assert.True(t, u.Present)
	assert.Equal(t, reading.SeatReserved, u.Reading.SeatStatus)
	assert.Equal(t, 22.5, u.Reading.DistanceCm)

	u, err = decodeUpdate([]byte("null"))
	require.NoError(t, err)
	assert.False(t, u.Present)
}

// TestStoreIntegration runs against a real database when
// STUDY_SPACE_TEST_DATABASE_URL points at one with the schema applied.
func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("STUDY_SPACE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STUDY_SPACE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, url, "test/Desk", "test/DeskLogs")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	entries, err := store.FetchRecent(ctx, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 5)

	_, err = store.Latest(ctx)
	require.NoError(t, err)
}
