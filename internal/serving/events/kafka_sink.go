// Package events implements the Model Manager's EventSink by publishing
// lifecycle transitions to Kafka, adapted from the platform's
// segmentio/kafka-go producer conventions: a single kafka.Writer configured
// with a topic balancer, required-acks, and batch/write timeouts, built once
// at startup and reused for every Publish call.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
)

// Config holds the Kafka producer tunables the lifecycle-event sink needs.
type Config struct {
	Brokers      []string
	Topic        string
	RequiredAcks string // "none" | "one" | "all"
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// writer is the slice of *kafkago.Writer the sink calls, narrowed for tests.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink publishes manager.TransitionEvent values to a Kafka topic,
// keyed by model name so all of one model's transitions land on the same
// partition and preserve order.
type KafkaSink struct {
	w      writer
	topic  string
	logger logging.Logger
}

// wireEvent is the JSON envelope written to Kafka for one transition.
type wireEvent struct {
	ModelName string `json:"model_name"`
	Version   int64  `json:"version"`
	From      string `json:"from"`
	To        string `json:"to"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// NewKafkaSink builds a KafkaSink from Config.
func NewKafkaSink(cfg Config, logger logging.Logger) *KafkaSink {
	var acks kafkago.RequiredAcks
	switch cfg.RequiredAcks {
	case "none":
		acks = kafkago.RequireNone
	case "all":
		acks = kafkago.RequireAll
	default:
		acks = kafkago.RequireOne
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 1 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: acks,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
	}
	return &KafkaSink{w: w, topic: cfg.Topic, logger: logger}
}

// NewKafkaSinkWithWriter builds a KafkaSink over a caller-supplied writer,
// used by tests to substitute a fake for the real Kafka connection.
func NewKafkaSinkWithWriter(w writer, logger logging.Logger) *KafkaSink {
	return &KafkaSink{w: w, logger: logger}
}

// Publish implements manager.EventSink. A write failure is logged, not
// returned — the manager invokes EventSink fire-and-forget, per spec: a
// lost lifecycle event must never roll back or retry the transition itself.
func (s *KafkaSink) Publish(ctx context.Context, evt manager.TransitionEvent) {
	payload, err := json.Marshal(wireEvent{
		ModelName: evt.ModelName,
		Version:   evt.Version,
		From:      evt.From.String(),
		To:        evt.To.String(),
		Code:      evt.Code.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Error("events: failed to marshal transition", logging.String("model", evt.ModelName), logging.Err(err))
		return
	}

	msg := kafkago.Message{Key: []byte(evt.ModelName), Value: payload}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		s.logger.Error("events: failed to publish transition",
			logging.String("model", evt.ModelName), logging.Int64("version", evt.Version), logging.Err(err))
		return
	}
	s.logger.Debug("events: published transition",
		logging.String("model", evt.ModelName), logging.Int64("version", evt.Version), logging.String("to", evt.To.String()))
}

// Close releases the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}

var _ manager.EventSink = (*KafkaSink)(nil)
