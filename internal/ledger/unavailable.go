package ledger

import (
	"context"

	"certledger/internal/credential/models"
	dErrors "certledger/pkg/domain-errors"
)

// Unavailable is the degraded client used when the ledger endpoint or
// contract is not configured. Every remote operation fails with cause, and
// verification falls back to local-only answers.
type Unavailable struct {
	cause error
}

// NewUnavailable returns a client failing with cause. A nil cause defaults to
// ErrEndpointNotConfigured.
func NewUnavailable(cause error) *Unavailable {
	if cause == nil {
		cause = ErrEndpointNotConfigured
	}
	return &Unavailable{cause: cause}
}

// Cause returns the configuration error this client reports.
func (u *Unavailable) Cause() error {
	return u.cause
}

func (u *Unavailable) EstimateAnchorCost(context.Context, models.Fingerprint, models.Fields) (*CostEstimate, error) {
	return nil, u.cause
}

func (u *Unavailable) Anchor(context.Context, models.Fingerprint, models.Fields) (*AnchorReceipt, error) {
	return nil, u.cause
}

// ReadAnchorRecord always reports unavailability, whatever the cause, so that
// verification degrades to a local-only answer.
func (u *Unavailable) ReadAnchorRecord(context.Context, models.Fingerprint) (AnchorRecordResult, error) {
	return AnchorRecordResult{}, &dErrors.Error{Code: dErrors.CodeLedgerUnavailable, Message: "ledger is not configured", Err: u.cause}
}

func (u *Unavailable) ReadTransaction(_ context.Context, txReference string) (TransactionResult, error) {
	if _, err := ParseTxReference(txReference); err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{}, u.cause
}

func (u *Unavailable) SignerReady() error {
	return u.cause
}

var (
	_ Client = (*Unavailable)(nil)
	_ Client = (*EthClient)(nil)
)
