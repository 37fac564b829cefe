package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/banshee-data/watch.report/internal/nvr/l5events"
)

// EventPublisher writes recorded events to a topic, keyed by camera so a
// camera's events stay ordered within one partition. It implements
// l5events.Sink.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewEventPublisher creates a publisher with its own sync producer.
func NewEventPublisher(brokers []string, topic string) (*EventPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return NewEventPublisherFromProducer(producer, topic), nil
}

func NewEventPublisherFromProducer(producer sarama.SyncProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) Name() string { return "kafka" }

// Publish sends one event. The producer has no context support, so ctx
// is only checked before sending.
func (p *EventPublisher) Publish(ctx context.Context, ev l5events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.CameraID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind())},
		},
		Timestamp: ev.Timestamp,
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send event %s: %w", ev.ID, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
