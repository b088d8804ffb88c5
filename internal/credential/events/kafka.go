package events

import (
	"context"
	"encoding/json"
	"fmt"

	"certledger/internal/platform/kafka/producer"
)

// Producer is the subset of producer.Producer the publisher needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events keyed by fingerprint so all events for one
// credential land on the same partition in order.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher builds a publisher. An empty topic selects DefaultTopic.
func NewKafkaPublisher(p Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.producer.Produce(ctx, &producer.Message{
		Topic: p.topic,
		Key:   []byte(event.Fingerprint),
		Value: value,
		Headers: map[string]string{
			"event_type": string(event.Type),
			"event_id":   event.ID.String(),
		},
	})
}
