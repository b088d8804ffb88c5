// Package tracer is a small tracing facade over OpenTelemetry so that ledger
// and verification code do not depend on otel APIs directly.
package tracer

import "context"

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Uint64(key string, value uint64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names.
const (
	SpanLedgerEstimate   = "ledger.estimate"
	SpanLedgerAnchor     = "ledger.anchor"
	SpanLedgerReadRecord = "ledger.read_record"
	SpanLedgerReadTx     = "ledger.read_transaction"
	SpanCrossCheck       = "verification.cross_check"
)

// Attribute keys.
const (
	AttrFingerprint = "credential.fingerprint"
	AttrTxReference = "ledger.tx_reference"
	AttrBlockNumber = "ledger.block_number"
	AttrGasUsed     = "ledger.gas_used"
	AttrPresent     = "ledger.present"
	AttrCrossCheck  = "verification.cross_check"
)

// Event names.
const (
	EventTxSubmitted     = "ledger.tx_submitted"
	EventReceiptTimedOut = "ledger.receipt_timed_out"
	EventCircuitOpen     = "ledger.circuit_open"
)
