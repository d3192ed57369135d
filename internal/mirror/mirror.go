// Package mirror republishes live reading changes to Kafka.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/logger"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/metrics"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/viewmodel"
)

// ProducerConfig contains the Kafka producer settings.
type ProducerConfig struct {
	Brokers      []string
	RetryMax     int
	Timeout      time.Duration
	RequiredAcks sarama.RequiredAcks
}

// DefaultProducerConfig returns a default producer configuration.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		RetryMax:     3,
		Timeout:      10 * time.Second,
		RequiredAcks: sarama.WaitForAll,
	}
}

// NewProducer creates a synchronous Kafka producer.
func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = cfg.RequiredAcks
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Timeout = cfg.Timeout
	// one node, one key: keep its readings on a single partition
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// Message is the mirrored live state of the node.
type Message struct {
	ID          string           `json:"id"`
	Node        string           `json:"node"`
	Mode        live.Mode        `json:"mode"`
	Online      bool             `json:"online"`
	Reading     *reading.Reading `json:"reading"`
	Error       string           `json:"error,omitempty"`
	PublishedAt time.Time        `json:"publishedAt"`
}

// Mirror publishes one message per live state change.
type Mirror struct {
	producer sarama.SyncProducer
	topic    string
	node     string
	now      func() time.Time
	log      *logger.Logger

	last *stateKey
}

type stateKey struct {
	mode      live.Mode
	present   bool
	updatedAt int64
	seat      reading.SeatStatus
	online    bool
	err       string
}

// New wraps producer. Messages are keyed by node.
func New(producer sarama.SyncProducer, topic, node string) *Mirror {
	return &Mirror{
		producer: producer,
		topic:    topic,
		node:     node,
		now:      time.Now,
		log:      logger.GetDefault().WithComponent("mirror"),
	}
}

// Run publishes changes read from snapshots until ctx is done or the
// channel closes. Publish failures are logged and counted; they never stop
// the mirror.
func (m *Mirror) Run(ctx context.Context, snapshots <-chan viewmodel.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := m.Observe(snap); err != nil {
				m.log.WarnContext(ctx, "mirror publish failed", "error", err)
			}
		}
	}
}

// Observe publishes snap when its live state differs from the last one
// published.
func (m *Mirror) Observe(snap viewmodel.Snapshot) error {
	st := snap.Live
	if st.Loading {
		return nil
	}

	key := stateKey{mode: snap.Mode, online: st.Online, err: st.Err}
	if st.Reading != nil {
		key.present = true
		key.updatedAt = st.Reading.UpdatedAtMs
		key.seat = st.Reading.SeatStatus
	}
	if m.last != nil && *m.last == key {
		return nil
	}

	err := m.Publish(Message{
		Node:    m.node,
		Mode:    snap.Mode,
		Online:  st.Online,
		Reading: st.Reading,
		Error:   st.Err,
	})
	metrics.IncMirror(err)
	if err != nil {
		return err
	}
	m.last = &key
	return nil
}

// Publish sends msg synchronously.
func (m *Mirror) Publish(msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = m.now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal live message: %w", err)
	}

	_, _, err = m.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     m.topic,
		Key:       sarama.StringEncoder(m.node),
		Value:     sarama.ByteEncoder(body),
		Timestamp: msg.PublishedAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("mode"), Value: []byte(msg.Mode)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send live message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer.
func (m *Mirror) Close() error {
	return m.producer.Close()
}
