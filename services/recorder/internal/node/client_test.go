package node

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

func TestFetchReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"seatStatus":"occupied","lightStatus":"LOW LIGHT","distance_cm":32.5,"fsrValue":"3100","ldrAO":400,"ldrDO":1}`))
	}))
	defer srv.Close()

	retrieved := time.UnixMilli(1_767_225_600_000)
	r, err := FetchReading(context.Background(), srv.Client(), srv.URL, retrieved)
	require.NoError(t, err)

	assert.Equal(t, reading.SeatOccupied, r.SeatStatus)
	assert.Equal(t, reading.LightLow, r.LightStatus)
	assert.Equal(t, 3100, r.PressureRaw)
	assert.InDelta(t, 32.5, r.DistanceCm, 0.001)
	assert.Equal(t, int64(1_767_225_600_000), r.UpdatedAtMs)
}

func TestFetchReadingErrors(t *testing.T) {
	status := http.StatusOK
	body := "null"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := FetchReading(context.Background(), srv.Client(), srv.URL, time.Now())
	assert.ErrorContains(t, err, "empty record")

	status = http.StatusBadGateway
	_, err = FetchReading(context.Background(), srv.Client(), srv.URL, time.Now())
	assert.ErrorContains(t, err, "unexpected status")

	status, body = http.StatusOK, "{not json"
	_, err = FetchReading(context.Background(), srv.Client(), srv.URL, time.Now())
	assert.Error(t, err)
}
