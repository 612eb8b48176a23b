package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaChannel streams notification events to a Kafka topic so downstream
// consumers (audit, paging, analytics) can react to them. Feature-flagged:
// the channel is only wired when KAFKA_ENABLED is set.
type KafkaChannel struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaChannel creates a producer for the notification topic.
func NewKafkaChannel(brokers []string, topic string, logger *slog.Logger) *KafkaChannel {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &KafkaChannel{writer: w, logger: logger}
}

func (k *KafkaChannel) Name() string { return "kafka" }

// Send publishes the payload as a JSON message keyed by kind.
func (k *KafkaChannel) Send(ctx context.Context, p Payload) error {
	msg, err := serializeToMessage(p)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaChannel) Close() error {
	return k.writer.Close()
}

// serializeToMessage marshals a Payload into a Kafka message.
func serializeToMessage(p Payload) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(p.Kind),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(p.Kind)},
			{Key: "at", Value: []byte(p.At.Format(time.RFC3339))},
		},
	}, nil
}
