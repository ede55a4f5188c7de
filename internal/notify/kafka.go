package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"woms-rules/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes AlertRaised events to a Kafka topic, keyed by subject.
type KafkaNotifier struct {
	writer       messageWriter
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewKafkaNotifier creates a synchronous Kafka writer for the configured topic.
func NewKafkaNotifier(cfg config.KafkaConfig, logger zerolog.Logger) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka notifier: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newKafkaNotifier(w, cfg.WriteTimeout, logger), nil
}

func newKafkaNotifier(w messageWriter, writeTimeout time.Duration, logger zerolog.Logger) *KafkaNotifier {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &KafkaNotifier{
		writer:       w,
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "kafka-notifier").Logger(),
	}
}

// Notify publishes one message per event.
func (n *KafkaNotifier) Notify(ctx context.Context, event AlertRaised) error {
	if event.Alert == nil {
		return nil
	}
	body, err := json.Marshal(newPayload(event))
	if err != nil {
		return fmt.Errorf("kafka notify %s: %w", event.Alert.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Alert.SubjectID),
		Value: body,
		Time:  event.RaisedAt,
		Headers: []kafka.Header{
			{Key: "urgency", Value: []byte(event.Alert.Urgency)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka notify %s: %w", event.Alert.ID, err)
	}

	n.logger.Debug().Str("alert_id", event.Alert.ID).Msg("kafka message published")
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
