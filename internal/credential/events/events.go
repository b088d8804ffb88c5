// Package events publishes credential anchoring state changes to downstream
// consumers. Events are emitted after the state change has been persisted;
// a lost event never rolls back a credential.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certledger/internal/credential/models"
)

// DefaultTopic is the Kafka topic credential events are written to.
const DefaultTopic = "certledger.credential.events"

// Type names a credential state change.
type Type string

const (
	TypeCredentialIssued   Type = "credential_issued"
	TypeAnchorPending      Type = "anchor_pending"
	TypeCredentialAnchored Type = "credential_anchored"
	TypeAnchorFailed       Type = "anchor_failed"
)

// Event is the JSON document consumers receive. Holder data is never part of
// an event.
type Event struct {
	ID          uuid.UUID          `json:"id"`
	Type        Type               `json:"type"`
	Fingerprint models.Fingerprint `json:"fingerprint"`
	IssuerID    string             `json:"issuer_id"`
	Status      models.Status      `json:"anchoring_status"`
	TxReference string             `json:"ledger_tx_reference,omitempty"`
	BlockNumber uint64             `json:"block_number,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// New builds an event describing the current state of c.
func New(t Type, c models.Credential, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		Fingerprint: c.Fingerprint,
		IssuerID:    c.Fields.IssuerID,
		Status:      c.Status,
		TxReference: c.TxReference,
		Reason:      c.FailureReason,
		OccurredAt:  at.UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
