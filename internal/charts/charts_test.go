package charts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

func rows(statuses ...reading.SeatStatus) []reading.Reading {
	out := make([]reading.Reading, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, reading.Reading{
			SeatStatus:  s,
			PressureRaw: 100 * i,
			DistanceCm:  float64(10 + i),
			LightAnalog: 2000 + i,
			UpdatedAtMs: int64(1000 * (i + 1)),
		})
	}
	return out
}

func TestStatusCountsSumToTotal(t *testing.T) {
	in := rows(reading.SeatOccupied, reading.SeatAvailable, reading.SeatReserved, reading.SeatOccupied, reading.SeatAvailable)
	c := StatusCounts(in)
	assert.Equal(t, Counts{Occupied: 2, Reserved: 1, Available: 2}, c)
	assert.Equal(t, len(in), c.Occupied+c.Reserved+c.Available)
}

func TestStatusCountsUnknownAndEmpty(t *testing.T) {
	assert.Equal(t, Counts{}, StatusCounts(nil))

	c := StatusCounts(rows(reading.SeatOccupied, reading.SeatUnknown))
	assert.Equal(t, Counts{Occupied: 1, Reserved: 0, Available: 1}, c)
	assert.GreaterOrEqual(t, c.Available, 0)
}

func TestTimelineSeries(t *testing.T) {
	in := rows(reading.SeatAvailable, reading.SeatReserved, reading.SeatOccupied, reading.SeatUnknown)
	tl := TimelineSeries(in, time.UTC)
	require.Len(t, tl, 4)

	numeric := []int{}
	for _, p := range tl {
		numeric = append(numeric, p.SeatNumeric)
	}
	assert.Equal(t, []int{0, 1, 2, 0}, numeric)
	assert.Equal(t, "00:00:01", tl[0].Time)
	assert.Equal(t, int64(1000), tl[0].TimeMs)
}

func TestNumericSeries(t *testing.T) {
	in := rows(reading.SeatOccupied, reading.SeatAvailable)
	p := PressureSeries(in, time.UTC)
	d := DistanceSeries(in, time.UTC)

	require.Len(t, p, 2)
	require.Len(t, d, 2)
	assert.Equal(t, 100.0, p[1].Value)
	assert.Equal(t, 11.0, d[1].Value)
	assert.Empty(t, PressureSeries(nil, nil))
}

func TestScatterGroupsDropsUnknown(t *testing.T) {
	in := rows(reading.SeatOccupied, reading.SeatUnknown, reading.SeatReserved, reading.SeatAvailable, reading.SeatOccupied)
	groups := ScatterGroups(in)
	require.Len(t, groups, 3)

	assert.Equal(t, reading.SeatOccupied, groups[0].Status)
	assert.Len(t, groups[0].Points, 2)
	assert.Len(t, groups[1].Points, 1)
	assert.Len(t, groups[2].Points, 1)
	assert.Equal(t, ScatterPoint{Pressure: 200, Distance: 12, LightAnalog: 2002}, groups[1].Points[0])

	total := 0
	for _, g := range groups {
		total += len(g.Points)
	}
	assert.Equal(t, 4, total)
}

func TestBuildEmptyWindow(t *testing.T) {
	c := Build(history.Window{WindowMinutes: 10}, nil)
	assert.Equal(t, 0, c.Points)
	assert.Empty(t, c.Timeline)
	require.Len(t, c.Distribution, 3)
	require.Len(t, c.Scatter, 3)
	for _, g := range c.Scatter {
		assert.NotNil(t, g.Points)
	}
}

func TestDistribution(t *testing.T) {
	slices := Distribution(Counts{Occupied: 3, Reserved: 1, Available: 5})
	assert.Equal(t, []Slice{
		{Name: "Occupied", Value: 3, Color: ColorOccupied},
		{Name: "Reserved", Value: 1, Color: ColorReserved},
		{Name: "Available", Value: 5, Color: ColorAvailable},
	}, slices)
}

func TestLiveCard(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 30, 0, time.UTC)

	empty := NewLiveCard(live.State{}, now, time.UTC)
	assert.False(t, empty.Available)
	assert.Equal(t, "-", empty.UpdatedAgo)

	r := reading.Reading{
		SeatStatus:   reading.SeatOccupied,
		LightStatus:  reading.LightLow,
		LightDigital: 1,
		UpdatedAtMs:  now.Add(-12 * time.Second).UnixMilli(),
	}
	card := NewLiveCard(live.State{Reading: &r, Online: true}, now, time.UTC)
	assert.True(t, card.Available)
	assert.True(t, card.Online)
	assert.Equal(t, HeaderOccupied, card.SeatColor)
	assert.Equal(t, HeaderLowLight, card.LightColor)
	assert.Equal(t, int64(12), card.SecondsSince)
	assert.Equal(t, "12 seconds ago", card.UpdatedAgo)
	assert.Equal(t, "2026-03-02 10:00:18", card.UpdatedAt)
}
