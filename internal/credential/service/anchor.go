package service

import (
	"context"
	"time"

	"certledger/internal/credential/events"
	"certledger/internal/credential/models"
	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/middleware/requesttime"
	"certledger/pkg/requestcontext"
)

// Anchor records the credential's fingerprint on the ledger.
//
// Already anchored or pending credentials are rejected without a remote call.
// A confirmed receipt moves the credential to anchored. A terminal ledger
// error (insufficient funds, revert, missing signer or contract) moves it to
// failed. When the ledger becomes unreachable the credential stays pending
// for the reconciler: if the transaction reference is known the result is
// reported as Pending, otherwise LedgerUnavailable is returned.
func (s *Service) Anchor(ctx context.Context, fp models.Fingerprint) (*models.AnchorResult, error) {
	requestID := requestcontext.RequestID(ctx)

	current, err := s.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.StatusAnchored:
		s.metrics.IncrementAnchorOutcome("rejected")
		return nil, dErrors.New(dErrors.CodeAlreadyAnchored, "credential is already anchored")
	case models.StatusPending:
		s.metrics.IncrementAnchorOutcome("rejected")
		return nil, dErrors.New(dErrors.CodeAnchorInProgress, "anchoring is already in progress")
	}
	if err := s.ledger.SignerReady(); err != nil {
		s.metrics.IncrementAnchorOutcome("rejected")
		return nil, err
	}

	now := requesttime.Now(ctx)
	pending, err := s.store.MarkPending(ctx, fp, now)
	if err != nil {
		s.metrics.IncrementAnchorOutcome("rejected")
		return nil, translateStoreErr(err, "mark credential pending")
	}
	s.publish(ctx, events.New(events.TypeAnchorPending, *pending, now))

	// From here on the outcome must be persisted even if the caller goes away.
	bg := context.WithoutCancel(ctx)
	lctx, cancel := context.WithTimeout(bg, s.ledgerTimeout)
	defer cancel()

	start := time.Now()
	receipt, anchorErr := s.ledger.Anchor(lctx, fp, pending.Fields)
	s.metrics.ObserveAnchorLatency(time.Since(start).Seconds())

	if anchorErr == nil {
		return s.completeAnchor(bg, pending, receipt)
	}

	txRef := ""
	if receipt != nil {
		txRef = receipt.TxReference
	}
	if txRef != "" {
		if err := s.store.RecordSubmission(bg, fp, txRef); err != nil {
			s.logger.ErrorContext(ctx, "failed to record submitted transaction",
				"fingerprint", fp.Short(),
				"tx_reference", txRef,
				"request_id", requestID,
				"error", err,
			)
		}
		pending.TxReference = txRef
	}

	if isTerminalLedgerErr(anchorErr) {
		failed, err := s.store.MarkFailed(bg, fp, failureReason(anchorErr))
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to mark credential failed",
				"fingerprint", fp.Short(),
				"request_id", requestID,
				"error", err,
			)
			return nil, anchorErr
		}
		s.metrics.IncrementAnchorOutcome("failed")
		s.logger.WarnContext(ctx, "anchoring failed",
			"fingerprint", fp.Short(),
			"code", dErrors.CodeOf(anchorErr),
			"tx_reference", txRef,
			"request_id", requestID,
		)
		s.publish(ctx, events.New(events.TypeAnchorFailed, *failed, requesttime.Now(ctx)))
		return nil, anchorErr
	}

	s.metrics.IncrementAnchorOutcome("pending")
	s.logger.WarnContext(ctx, "anchoring outcome unknown, credential left pending",
		"fingerprint", fp.Short(),
		"tx_reference", txRef,
		"request_id", requestID,
		"error", anchorErr,
	)
	if txRef == "" {
		if !dErrors.HasCode(anchorErr, dErrors.CodeLedgerUnavailable) {
			anchorErr = &dErrors.Error{Code: dErrors.CodeLedgerUnavailable, Message: "ledger did not complete the anchoring request", Err: anchorErr}
		}
		return nil, anchorErr
	}
	return &models.AnchorResult{Credential: *pending, Pending: true}, nil
}

func (s *Service) completeAnchor(ctx context.Context, pending *models.Credential, receipt *ledger.AnchorReceipt) (*models.AnchorResult, error) {
	anchoredAt := time.Now().UTC()
	anchored, err := s.store.MarkAnchored(ctx, pending.Fingerprint, receipt.TxReference, anchoredAt)
	if err != nil {
		// The ledger has the record; keep the reference so the reconciler
		// can finish the transition.
		if subErr := s.store.RecordSubmission(ctx, pending.Fingerprint, receipt.TxReference); subErr != nil {
			s.logger.ErrorContext(ctx, "failed to record confirmed transaction",
				"fingerprint", pending.Fingerprint.Short(),
				"tx_reference", receipt.TxReference,
				"error", subErr,
			)
		}
		return nil, translateStoreErr(err, "mark credential anchored")
	}

	s.metrics.IncrementAnchorOutcome("anchored")
	s.logger.InfoContext(ctx, "credential anchored",
		"fingerprint", anchored.Fingerprint.Short(),
		"tx_reference", receipt.TxReference,
		"block_number", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
		"request_id", requestcontext.RequestID(ctx),
	)
	event := events.New(events.TypeCredentialAnchored, *anchored, anchoredAt)
	event.BlockNumber = receipt.BlockNumber
	s.publish(ctx, event)

	return &models.AnchorResult{
		Credential:  *anchored,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// isTerminalLedgerErr reports whether retrying the same anchoring request
// cannot succeed without operator action.
func isTerminalLedgerErr(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInsufficientFunds,
		dErrors.CodeTransactionReverted,
		dErrors.CodeSignerNotConfigured,
		dErrors.CodeContractNotConfigured:
		return true
	}
	return false
}

func failureReason(err error) string {
	reason := string(dErrors.CodeOf(err))
	if msg := err.Error(); msg != "" && msg != reason {
		reason += ": " + msg
	}
	return reason
}
