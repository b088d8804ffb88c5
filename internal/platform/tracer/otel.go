package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer emits client spans through an OpenTelemetry tracer. Exporter
// and sampler setup belong to whoever installs the global provider.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer uses t instead of the global provider's tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel returns a tracer for the instrumentation scope, for example
// "certledger/ledger".
func NewOTel(scope string, opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{tracer: otel.Tracer(scope)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(keyValues(attrs)...),
	)
	return ctx, otelSpan{span}
}

type otelSpan struct {
	trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	}
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.Span.SetAttributes(keyValues(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.Span.AddEvent(name, trace.WithAttributes(keyValues(attrs)...))
}

// keyValues drops attributes whose value type has no otel counterpart.
func keyValues(attrs []Attribute) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if kv, ok := keyValue(a); ok {
			kvs = append(kvs, kv)
		}
	}
	return kvs
}

func keyValue(a Attribute) (attribute.KeyValue, bool) {
	key := attribute.Key(a.Key)
	switch v := a.Value.(type) {
	case string:
		return key.String(v), true
	case bool:
		return key.Bool(v), true
	case int:
		return key.Int(v), true
	case int64:
		return key.Int64(v), true
	case uint64:
		// Block numbers and gas amounts stay far below 2^63.
		return key.Int64(int64(v)), true //nolint:gosec
	case float64:
		return key.Float64(v), true
	default:
		return attribute.KeyValue{}, false
	}
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = otelSpan{}
)
