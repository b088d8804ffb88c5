package service

import (
	"context"
	"time"

	"certledger/internal/credential/events"
	"certledger/internal/credential/models"
	"certledger/internal/ledger"
	"certledger/pkg/platform/middleware/requesttime"
)

// ReconcileOutcome describes what Reconcile did with one credential.
type ReconcileOutcome string

const (
	ReconcileAnchored   ReconcileOutcome = "anchored"
	ReconcileFailed     ReconcileOutcome = "failed"
	ReconcileAbandoned  ReconcileOutcome = "abandoned"
	ReconcileWaiting    ReconcileOutcome = "waiting"
	ReconcileNotPending ReconcileOutcome = "not_pending"
)

// Reconcile resolves a pending credential from the ledger's view of its
// transaction. Credentials that are not pending are returned unchanged.
//
//   - confirmed transaction: anchored at the block time
//   - reverted transaction: failed
//   - no transaction reference, or a reference the ledger does not know,
//     pending for longer than the abandon window: failed
//   - anything else: left pending
//
// Ledger errors are returned as is and leave the credential untouched.
func (s *Service) Reconcile(ctx context.Context, fp models.Fingerprint) (*models.Credential, ReconcileOutcome, error) {
	c, err := s.Get(ctx, fp)
	if err != nil {
		return nil, "", err
	}
	if c.Status != models.StatusPending {
		return c, ReconcileNotPending, nil
	}
	now := requesttime.Now(ctx)

	if c.TxReference == "" {
		if !s.abandoned(c, now) {
			return c, ReconcileWaiting, nil
		}
		return s.fail(ctx, c, reasonSubmissionNotObserved, ReconcileAbandoned)
	}

	result, err := s.ledger.ReadTransaction(ctx, c.TxReference)
	if err != nil {
		return c, "", err
	}
	details, ok := result.Details()
	if !ok {
		if !s.abandoned(c, now) {
			return c, ReconcileWaiting, nil
		}
		return s.fail(ctx, c, reasonTransactionNotObserved, ReconcileAbandoned)
	}

	switch details.Status {
	case ledger.TxConfirmed:
		at := now
		if details.BlockTime != nil {
			at = details.BlockTime.UTC()
		}
		anchored, err := s.store.MarkAnchored(ctx, fp, c.TxReference, at)
		if err != nil {
			return c, "", translateStoreErr(err, "mark credential anchored")
		}
		s.logger.InfoContext(ctx, "pending credential reconciled as anchored",
			"fingerprint", fp.Short(),
			"tx_reference", c.TxReference,
			"block_number", details.BlockNumber,
		)
		event := events.New(events.TypeCredentialAnchored, *anchored, now)
		event.BlockNumber = details.BlockNumber
		s.publish(ctx, event)
		return anchored, ReconcileAnchored, nil
	case ledger.TxReverted:
		return s.fail(ctx, c, reasonTransactionReverted, ReconcileFailed)
	default:
		return c, ReconcileWaiting, nil
	}
}

func (s *Service) abandoned(c *models.Credential, now time.Time) bool {
	return c.PendingSince != nil && now.Sub(*c.PendingSince) >= s.abandonAfter
}

func (s *Service) fail(ctx context.Context, c *models.Credential, reason string, outcome ReconcileOutcome) (*models.Credential, ReconcileOutcome, error) {
	failed, err := s.store.MarkFailed(ctx, c.Fingerprint, reason)
	if err != nil {
		return c, "", translateStoreErr(err, "mark credential failed")
	}
	s.logger.WarnContext(ctx, "pending credential reconciled as failed",
		"fingerprint", c.Fingerprint.Short(),
		"tx_reference", c.TxReference,
		"reason", reason,
	)
	s.publish(ctx, events.New(events.TypeAnchorFailed, *failed, requesttime.Now(ctx)))
	return failed, outcome, nil
}
