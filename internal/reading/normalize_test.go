package reading

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFullRecord(t *testing.T) {
	r := Normalize(map[string]any{
		"seatStatus":  "OCCUPIED",
		"lightStatus": "LOW LIGHT",
		"distance_cm": 31.5,
		"fsrValue":    float64(3120),
		"ldrAO":       float64(450),
		"ldrDO":       float64(1),
		"updatedAt":   float64(1767225600000),
	})

	assert.Equal(t, Reading{
		SeatStatus:   SeatOccupied,
		LightStatus:  LightLow,
		DistanceCm:   31.5,
		PressureRaw:  3120,
		LightAnalog:  450,
		LightDigital: 1,
		UpdatedAtMs:  1767225600000,
	}, r)
}

func TestNormalizeDefaults(t *testing.T) {
	for name, raw := range map[string]map[string]any{
		"nil":   nil,
		"empty": {},
		"garbage": {
			"seatStatus":  42,
			"lightStatus": []any{"BRIGHT"},
			"distance_cm": "far",
			"fsrValue":    map[string]any{"v": 1},
			"ldrAO":       nil,
			"ldrDO":       "x",
			"updatedAt":   "yesterday",
		},
		"negative": {
			"distance_cm": -4.0,
			"fsrValue":    -1,
			"ldrAO":       "-300",
			"ldrDO":       -1,
			"updatedAt":   -5,
		},
		"non-finite": {
			"distance_cm": math.NaN(),
			"fsrValue":    math.Inf(1),
			"updatedAt":   math.Inf(-1),
		},
	} {
		t.Run(name, func(t *testing.T) {
			r := Normalize(raw)
			assert.Equal(t, SeatUnknown, r.SeatStatus)
			assert.Equal(t, LightUnknown, r.LightStatus)
			assert.Zero(t, r.DistanceCm)
			assert.Zero(t, r.PressureRaw)
			assert.Zero(t, r.LightAnalog)
			assert.Zero(t, r.LightDigital)
			assert.Zero(t, r.UpdatedAtMs)
		})
	}
}

func TestNormalizeCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Reading
	}{
		{
			name: "numeric strings",
			raw:  map[string]any{"fsrValue": " 3000 ", "distance_cm": "12.25", "updatedAt": "2000"},
			want: Reading{SeatStatus: SeatUnknown, LightStatus: LightUnknown, PressureRaw: 3000, DistanceCm: 12.25, UpdatedAtMs: 2000},
		},
		{
			name: "json numbers",
			raw:  map[string]any{"ldrAO": json.Number("2750"), "ldrDO": json.Number("0")},
			want: Reading{SeatStatus: SeatUnknown, LightStatus: LightUnknown, LightAnalog: 2750},
		},
		{
			name: "fractions truncate",
			raw:  map[string]any{"fsrValue": 2999.9, "updatedAt": 1500.7},
			want: Reading{SeatStatus: SeatUnknown, LightStatus: LightUnknown, PressureRaw: 2999, UpdatedAtMs: 1500},
		},
		{
			name: "lower case statuses",
			raw:  map[string]any{"seatStatus": " reserved ", "lightStatus": "bright"},
			want: Reading{SeatStatus: SeatReserved, LightStatus: LightBright},
		},
		{
			name: "low light spellings",
			raw:  map[string]any{"seatStatus": "available", "lightStatus": "low-light"},
			want: Reading{SeatStatus: SeatAvailable, LightStatus: LightLow},
		},
		{
			name: "digital flag from bool",
			raw:  map[string]any{"ldrDO": true},
			want: Reading{SeatStatus: SeatUnknown, LightStatus: LightUnknown, LightDigital: 1},
		},
		{
			name: "digital flag clamps",
			raw:  map[string]any{"ldrDO": 7},
			want: Reading{SeatStatus: SeatUnknown, LightStatus: LightUnknown, LightDigital: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeEntryScenario(t *testing.T) {
	row0 := NormalizeEntry("-Nk1", map[string]any{"updatedAt": 1000, "seatStatus": "occupied", "fsrValue": "3000"})
	row1 := NormalizeEntry("-Nk2", map[string]any{"updatedAt": 2000, "seatStatus": "bogus"})

	assert.Equal(t, "-Nk1", row0.Key)
	assert.Equal(t, SeatOccupied, row0.SeatStatus)
	assert.Equal(t, 3000, row0.PressureRaw)
	assert.Equal(t, int64(1000), row0.UpdatedAtMs)

	assert.Equal(t, SeatUnknown, row1.SeatStatus)
	assert.Equal(t, 0, row1.PressureRaw)
	assert.Equal(t, int64(2000), row1.UpdatedAtMs)
}

func TestPayloadRoundTrip(t *testing.T) {
	in := Reading{
		SeatStatus:   SeatReserved,
		LightStatus:  LightLow,
		DistanceCm:   18,
		PressureRaw:  0,
		LightAnalog:  320,
		LightDigital: 1,
		UpdatedAtMs:  1700000000000,
	}

	payload := in.Payload()
	require.Equal(t, "LOW LIGHT", payload[FieldLightStatus])
	assert.Equal(t, in, Normalize(payload))
}

func TestSeatNumeric(t *testing.T) {
	assert.Equal(t, 2, Reading{SeatStatus: SeatOccupied}.SeatNumeric())
	assert.Equal(t, 1, Reading{SeatStatus: SeatReserved}.SeatNumeric())
	assert.Equal(t, 0, Reading{SeatStatus: SeatAvailable}.SeatNumeric())
	assert.Equal(t, 0, Reading{SeatStatus: SeatUnknown}.SeatNumeric())
	assert.True(t, Reading{}.UpdatedAt().IsZero())
}
