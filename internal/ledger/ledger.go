// Package ledger anchors credential fingerprints on an EVM ledger and reads
// them back. The ledger is a remote service reached through one node endpoint
// and one registry contract; reads return tagged Present/Absent results and
// never treat absence as an error.
package ledger

import (
	"context"

	"certledger/internal/credential/models"
)

// Client is the ledger surface used by the credential and verification
// services. Idempotence of Anchor is the caller's responsibility.
type Client interface {
	EstimateAnchorCost(ctx context.Context, fp models.Fingerprint, fields models.Fields) (*CostEstimate, error)
	// Anchor signs, submits and waits for the receipt of a storeDiploma call.
	// When the transaction was submitted but its receipt was not observed the
	// returned receipt has status pending and the error is LedgerUnavailable.
	Anchor(ctx context.Context, fp models.Fingerprint, fields models.Fields) (*AnchorReceipt, error)
	ReadAnchorRecord(ctx context.Context, fp models.Fingerprint) (AnchorRecordResult, error)
	ReadTransaction(ctx context.Context, txReference string) (TransactionResult, error)
	// SignerReady reports the configuration error that would make Anchor
	// fail before any remote call, or nil.
	SignerReady() error
}
