package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserversBeforeInitAreNoops(t *testing.T) {
	if liveUpdates != nil {
		t.Skip("metrics already initialised by another test")
	}
	assert.NotPanics(t, func() {
		IncLiveUpdate("fake")
		IncHistoryStale()
		SetOnline(true, time.Now(), time.Now())
	})
}

func TestCountersAfterInit(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(historyTotal.WithLabelValues(ResultError))
	ObserveHistoryFetch(errors.New("boom"), 0, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(historyTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(historyRows))

	ObserveHistoryFetch(nil, 42, time.Millisecond)
	assert.Equal(t, 42.0, testutil.ToFloat64(historyRows))

	now := time.Unix(1_700_000_000, 0)
	SetOnline(true, now.Add(-3*time.Second), now)
	assert.Equal(t, 1.0, testutil.ToFloat64(nodeOnline))
	assert.Equal(t, 3.0, testutil.ToFloat64(liveAge))

	SetOnline(false, time.Time{}, now)
	assert.Equal(t, 0.0, testutil.ToFloat64(nodeOnline))
	assert.Equal(t, 0.0, testutil.ToFloat64(liveAge))

	staleBefore := testutil.ToFloat64(historyStale)
	IncHistoryStale()
	assert.Equal(t, staleBefore+1, testutil.ToFloat64(historyStale))
}
