package live

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

func TestSynthesizePolicy(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	now := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

	seen := map[reading.SeatStatus]int{}
	lowLight := 0
	const n = 5000

	for i := 0; i < n; i++ {
		r := Synthesize(rng, now)
		seen[r.SeatStatus]++
		assert.Equal(t, now.UnixMilli(), r.UpdatedAtMs)

		switch r.SeatStatus {
		case reading.SeatOccupied:
			assert.GreaterOrEqual(t, r.PressureRaw, 2800)
			assert.Less(t, r.PressureRaw, 4200)
			assert.GreaterOrEqual(t, r.DistanceCm, 25.0)
			assert.Less(t, r.DistanceCm, 55.0)
		case reading.SeatReserved:
			assert.Zero(t, r.PressureRaw)
			assert.GreaterOrEqual(t, r.DistanceCm, 10.0)
			assert.Less(t, r.DistanceCm, 35.0)
		case reading.SeatAvailable:
			assert.Zero(t, r.PressureRaw)
			assert.GreaterOrEqual(t, r.DistanceCm, 60.0)
			assert.Less(t, r.DistanceCm, 140.0)
		default:
			t.Fatalf("unexpected seat status %q", r.SeatStatus)
		}

		if r.LightDigital == 1 {
			lowLight++
			assert.Equal(t, reading.LightLow, r.LightStatus)
			assert.GreaterOrEqual(t, r.LightAnalog, 100)
			assert.Less(t, r.LightAnalog, 900)
		} else {
			assert.Equal(t, reading.LightBright, r.LightStatus)
			assert.GreaterOrEqual(t, r.LightAnalog, 2000)
			assert.Less(t, r.LightAnalog, 3500)
		}
	}

	require.Len(t, seen, 3)
	for status, count := range seen {
		assert.InDelta(t, n/3, count, n/10, "status %s", status)
	}
	assert.InDelta(t, 0.3*n, lowLight, 0.05*n)
}

func TestSyntheticSourceEmitsUntilReleased(t *testing.T) {
	src := NewSyntheticSource(10*time.Millisecond, rand.New(rand.NewPCG(1, 2)))

	var mu sync.Mutex
	count := 0
	first := make(chan struct{})

	release := src.Subscribe(context.Background(), func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		assert.True(t, u.Present)
		count++
		if count == 1 {
			close(first)
		}
	}, nil)

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the initial synthetic reading")
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, 5*time.Millisecond)

	release()
	release()

	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, count, "no emission after release")
}
