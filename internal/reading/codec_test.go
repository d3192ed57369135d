package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRaw(t *testing.T) {
	raw, err := DecodeRaw([]byte(`{"seatStatus":"RESERVED","fsrValue":12,"updatedAt":1767225600123}`))
	require.NoError(t, err)

	r := Normalize(raw)
	assert.Equal(t, SeatReserved, r.SeatStatus)
	assert.Equal(t, 12, r.PressureRaw)
	assert.Equal(t, int64(1767225600123), r.UpdatedAtMs)
}

func TestDecodeRawNullAndScalars(t *testing.T) {
	for _, in := range []string{"", "null", "  null\n"} {
		raw, err := DecodeRaw([]byte(in))
		require.NoError(t, err, in)
		assert.Nil(t, raw, in)
	}

	raw, err := DecodeRaw([]byte(`"hello"`))
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Equal(t, SeatUnknown, Normalize(raw).SeatStatus)

	_, err = DecodeRaw([]byte(`{"seatStatus":`))
	assert.Error(t, err)
}

func TestEncodePayloadUsesWireNames(t *testing.T) {
	in := Reading{
		SeatStatus:   SeatOccupied,
		LightStatus:  LightLow,
		DistanceCm:   30,
		PressureRaw:  3000,
		LightAnalog:  400,
		LightDigital: 1,
		UpdatedAtMs:  1767225600000,
	}
	b, err := EncodePayload(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"lightStatus":"LOW LIGHT"`)
	assert.Contains(t, string(b), `"fsrValue":3000`)

	raw, err := DecodeRaw(b)
	require.NoError(t, err)
	assert.Equal(t, in, Normalize(raw))
}
