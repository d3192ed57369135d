package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
)

func snapshot(seat reading.SeatStatus, updatedAt int64, online bool) viewmodel.Snapshot {
	r := reading.Reading{SeatStatus: seat, UpdatedAtMs: updatedAt}
	return viewmodel.Snapshot{
		Mode: live.ModeExternal,
		Live: live.State{Reading: &r, Online: online},
	}
}

func TestObservePublishesOnlyChanges(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Node != "USMLibrary/Desk01" || msg.Reading == nil || msg.Reading.SeatStatus != reading.SeatOccupied {
			return errors.New("unexpected first message")
		}
		if msg.ID == "" {
			return errors.New("missing id")
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	m := New(producer, "study-space.live", "USMLibrary/Desk01")

	require.NoError(t, m.Observe(snapshot(reading.SeatOccupied, 1000, true)))
	require.NoError(t, m.Observe(snapshot(reading.SeatOccupied, 1000, true)))
	require.NoError(t, m.Observe(viewmodel.Snapshot{Live: live.State{Loading: true}}))
	require.NoError(t, m.Observe(snapshot(reading.SeatOccupied, 1000, false)))

	require.NoError(t, m.Close())
}

func TestObserveRetriesAfterFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))
	producer.ExpectSendMessageAndSucceed()

	m := New(producer, "study-space.live", "node")
	snap := snapshot(reading.SeatAvailable, 2000, true)

	err := m.Observe(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, m.Observe(snap))
	require.NoError(t, m.Close())
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	m := New(producer, "topic", "node")
	ch := make(chan viewmodel.Snapshot, 2)
	ch <- snapshot(reading.SeatReserved, 3000, true)
	ch <- snapshot(reading.SeatReserved, 3000, true)
	close(ch)

	m.Run(context.Background(), ch)
	require.NoError(t, m.Close())
}
