package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracerKeepsContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "marker")

	got, span := NewNoop().Start(ctx, SpanLedgerAnchor, String(AttrFingerprint, "ab"))
	assert.Equal(t, ctx, got)

	span.SetAttributes(Uint64(AttrBlockNumber, 7))
	span.AddEvent(EventTxSubmitted)
	span.End(errors.New("node unreachable"))
}

func TestOTelTracerWithInjectedTracer(t *testing.T) {
	tr := NewOTel("certledger/test", WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), SpanLedgerReadRecord, String(AttrFingerprint, "ab"))
	span.SetAttributes(Bool(AttrPresent, true), Uint64(AttrGasUsed, 21000))
	span.AddEvent(EventReceiptTimedOut, String(AttrTxReference, "0x01"))
	span.End(nil)
}

func TestKeyValues(t *testing.T) {
	got := keyValues([]Attribute{
		String("s", "v"),
		Bool("b", true),
		{Key: "i", Value: 3},
		Int64("i64", -4),
		Uint64("u64", 5),
		{Key: "f", Value: 0.5},
		{Key: "dropped", Value: struct{}{}},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "v"),
		attribute.Bool("b", true),
		attribute.Int("i", 3),
		attribute.Int64("i64", -4),
		attribute.Int64("u64", 5),
		attribute.Float64("f", 0.5),
	}, got)
}

func TestKeyValuesEmpty(t *testing.T) {
	assert.Empty(t, keyValues(nil))
}
