package live

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// DefaultSyntheticInterval is the emission period of the synthetic source.
const DefaultSyntheticInterval = 2 * time.Second

var syntheticSeats = [...]reading.SeatStatus{
	reading.SeatAvailable,
	reading.SeatReserved,
	reading.SeatOccupied,
}

// Synthesize builds a plausible node reading stamped with now.
func Synthesize(rng *rand.Rand, now time.Time) reading.Reading {
	seat := syntheticSeats[rng.IntN(len(syntheticSeats))]

	r := reading.Reading{
		SeatStatus:  seat,
		LightStatus: reading.LightBright,
		UpdatedAtMs: now.UnixMilli(),
	}

	if rng.Float64() < 0.3 {
		r.LightDigital = 1
		r.LightStatus = reading.LightLow
		r.LightAnalog = 100 + rng.IntN(800)
	} else {
		r.LightAnalog = 2000 + rng.IntN(1500)
	}

	switch seat {
	case reading.SeatOccupied:
		r.PressureRaw = 2800 + rng.IntN(1400)
		r.DistanceCm = float64(25 + rng.IntN(30))
	case reading.SeatReserved:
		r.DistanceCm = float64(10 + rng.IntN(25))
	default:
		r.DistanceCm = float64(60 + rng.IntN(80))
	}

	return r
}

// SyntheticSource emits generated readings on a fixed interval.
type SyntheticSource struct {
	Interval time.Duration
	Now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource returns a source that emits every interval using rng.
// A nil rng is seeded from the wall clock.
func NewSyntheticSource(interval time.Duration, rng *rand.Rand) *SyntheticSource {
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &SyntheticSource{Interval: interval, Now: time.Now, rng: rng}
}

func (s *SyntheticSource) next() reading.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Synthesize(s.rng, s.Now())
}

// Subscribe emits one reading immediately, then one per interval until
// release is called or ctx is done.
func (s *SyntheticSource) Subscribe(ctx context.Context, onUpdate func(Update), _ func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		onUpdate(Update{Reading: s.next(), Present: true})

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// re-check so a tick racing release never emits
				if ctx.Err() != nil {
					return
				}
				onUpdate(Update{Reading: s.next(), Present: true})
			}
		}
	}()

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}
