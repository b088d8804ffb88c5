package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It is the publisher used
// when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "credential event",
		"event_id", event.ID,
		"event_type", event.Type,
		"fingerprint", event.Fingerprint.Short(),
		"anchoring_status", event.Status,
		"tx_reference", event.TxReference,
		"request_id", event.RequestID,
	)
	return nil
}
