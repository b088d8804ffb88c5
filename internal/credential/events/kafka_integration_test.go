//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"certledger/internal/credential/events"
	"certledger/internal/credential/models"
	"certledger/internal/platform/kafka/producer"
	"certledger/pkg/testutil"
	"certledger/pkg/testutil/containers"
)

func TestKafkaPublisherDeliversInOrderPerFingerprint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	kc := containers.GetManager().GetKafka(t)
	topic := "certledger.credential.events.it"
	require.NoError(t, kc.CreateTopic(ctx, topic, 3))

	prod, err := producer.New(producer.Config{Brokers: kc.Brokers, Acks: "all"}, nil)
	require.NoError(t, err)
	defer prod.Close(5 * time.Second)
	pub := events.NewKafkaPublisher(prod, topic)

	c := *testutil.NewTestCredential(testutil.NewTestFields(7))
	sequence := []events.Type{events.TypeCredentialIssued, events.TypeAnchorPending, events.TypeCredentialAnchored}
	for _, typ := range sequence {
		c.Status = map[events.Type]models.Status{
			events.TypeCredentialIssued:   models.StatusUnanchored,
			events.TypeAnchorPending:      models.StatusPending,
			events.TypeCredentialAnchored: models.StatusAnchored,
		}[typ]
		require.NoError(t, pub.Publish(ctx, events.New(typ, c, time.Now())))
	}

	consumer, err := kc.NewConsumer("events-it", topic)
	require.NoError(t, err)
	defer consumer.Close()

	records := containers.CollectByKey(ctx, consumer, c.Fingerprint.String(), len(sequence), 15*time.Second)
	got := make([]events.Type, 0, len(records))
	for _, r := range records {
		var e events.Event
		require.NoError(t, json.Unmarshal(r.Value, &e))
		got = append(got, e.Type)
	}
	require.Equal(t, sequence, got)
}
