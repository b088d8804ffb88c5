//go:build integration

package containers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const redpandaImage = "redpandadata/redpanda:v24.2.7"

// KafkaContainer is a single-broker Kafka-compatible cluster for event tests.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

// NewKafkaContainer starts Redpanda, which speaks the Kafka protocol and
// boots in a few seconds.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()

	ctx := context.Background()
	container, err := kafka.Run(ctx, redpandaImage, kafka.WithClusterID("certledger-it"))
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil || len(brokers) == 0 {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	return &KafkaContainer{Container: container, Brokers: brokers[0]}
}

// CreateTopic creates topic with the given partition count on the single
// broker. A topic that already exists is left as is.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// NewConsumer returns a group consumer reading topics from the beginning.
// The caller closes it.
func (k *KafkaContainer) NewConsumer(groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
}

// CollectByKey polls until want records carrying key have arrived or the
// timeout passes, and returns them in consumption order.
func CollectByKey(ctx context.Context, client *kgo.Client, key string, want int, timeout time.Duration) []*kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out []*kgo.Record
	for len(out) < want && ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == key {
				out = append(out, r)
			}
		})
	}
	return out
}
