package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/credential/models"
	"certledger/internal/platform/kafka/producer"
	"certledger/pkg/testutil"
)

type recordingProducer struct {
	messages []*producer.Message
	err      error
}

func (p *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.messages = append(p.messages, msg)
	return p.err
}

func anchoredCredential(t *testing.T) models.Credential {
	t.Helper()
	c := *testutil.NewTestCredential(testutil.NewTestFields(1))
	anchoredAt := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)
	c.Status = models.StatusAnchored
	c.TxReference = testutil.TestTxReference(1)
	c.AnchoredAt = &anchoredAt
	return c
}

func TestKafkaPublisher(t *testing.T) {
	c := anchoredCredential(t)
	rec := &recordingProducer{}
	pub := NewKafkaPublisher(rec, "")

	event := New(TypeCredentialAnchored, c, time.Date(2024, 7, 2, 10, 0, 1, 0, time.FixedZone("CEST", 2*3600)))
	event.BlockNumber = 101
	require.NoError(t, pub.Publish(context.Background(), event))

	require.Len(t, rec.messages, 1)
	msg := rec.messages[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, c.Fingerprint.String(), string(msg.Key))
	assert.Equal(t, "credential_anchored", msg.Headers["event_type"])
	assert.Equal(t, event.ID.String(), msg.Headers["event_id"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "anchored", decoded["anchoring_status"])
	assert.Equal(t, c.TxReference, decoded["ledger_tx_reference"])
	assert.EqualValues(t, 101, decoded["block_number"])
	assert.Equal(t, "2024-07-02T08:00:01Z", decoded["occurred_at"])
	assert.NotContains(t, string(msg.Value), c.Fields.HolderContact)
	assert.NotContains(t, string(msg.Value), c.Fields.HolderName)
}

func TestKafkaPublisherPropagatesProducerError(t *testing.T) {
	rec := &recordingProducer{err: errors.New("broker down")}
	err := NewKafkaPublisher(rec, "custom.topic").Publish(context.Background(), New(TypeAnchorPending, anchoredCredential(t), time.Now()))
	require.Error(t, err)
	assert.Equal(t, "custom.topic", rec.messages[0].Topic)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	c := anchoredCredential(t)

	require.NoError(t, pub.Publish(context.Background(), New(TypeCredentialAnchored, c, time.Now())))
	assert.Contains(t, buf.String(), `"event_type":"credential_anchored"`)
	assert.Contains(t, buf.String(), c.Fingerprint.Short())
}
