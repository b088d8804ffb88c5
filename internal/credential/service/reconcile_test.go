package service

import (
	"context"
	"time"

	"go.uber.org/mock/gomock"

	"certledger/internal/credential/events"
	"certledger/internal/credential/models"
	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/middleware/requesttime"
	"certledger/pkg/testutil"
)

// pendingWithRef leaves a credential pending with a known transaction.
func (s *ServiceSuite) pendingWithRef(n int) *models.Credential {
	c := s.issue(n)
	_, err := s.store.MarkPending(context.Background(), c.Fingerprint, s.issuedAt)
	s.Require().NoError(err)
	s.Require().NoError(s.store.RecordSubmission(context.Background(), c.Fingerprint, testutil.TestTxReference(n)))
	return s.stored(c.Fingerprint)
}

func (s *ServiceSuite) pendingWithoutRef(n int) *models.Credential {
	c := s.issue(n)
	_, err := s.store.MarkPending(context.Background(), c.Fingerprint, s.issuedAt)
	s.Require().NoError(err)
	return s.stored(c.Fingerprint)
}

func (s *ServiceSuite) later(d time.Duration) context.Context {
	return requesttime.WithTime(context.Background(), s.issuedAt.Add(d))
}

func (s *ServiceSuite) TestReconcileConfirmedAnchorsAtBlockTime() {
	c := s.pendingWithRef(1)
	blockTime := s.issuedAt.Add(40 * time.Second)
	s.ledger.EXPECT().ReadTransaction(gomock.Any(), c.TxReference).Return(ledger.PresentTransaction(ledger.TransactionDetails{
		Reference:   c.TxReference,
		Status:      ledger.TxConfirmed,
		BlockNumber: 88,
		BlockTime:   &blockTime,
	}), nil)

	got, outcome, err := s.service.Reconcile(s.later(time.Minute), c.Fingerprint)

	s.Require().NoError(err)
	s.Equal(ReconcileAnchored, outcome)
	s.Equal(models.StatusAnchored, got.Status)
	s.Require().NotNil(got.AnchoredAt)
	s.True(blockTime.Equal(*got.AnchoredAt))
	s.Equal(c.TxReference, got.TxReference)
	s.Contains(s.publisher.types(), events.TypeCredentialAnchored)
}

func (s *ServiceSuite) TestReconcileReverted() {
	c := s.pendingWithRef(1)
	s.ledger.EXPECT().ReadTransaction(gomock.Any(), c.TxReference).Return(ledger.PresentTransaction(ledger.TransactionDetails{
		Reference: c.TxReference,
		Status:    ledger.TxReverted,
	}), nil)

	got, outcome, err := s.service.Reconcile(s.later(time.Minute), c.Fingerprint)

	s.Require().NoError(err)
	s.Equal(ReconcileFailed, outcome)
	s.Equal(models.StatusFailed, got.Status)
	s.Equal(reasonTransactionReverted, got.FailureReason)
	s.Equal(c.TxReference, got.TxReference)
}

func (s *ServiceSuite) TestReconcileUnseenTransaction() {
	c := s.pendingWithRef(1)
	s.ledger.EXPECT().ReadTransaction(gomock.Any(), c.TxReference).Return(ledger.AbsentTransaction(), nil).Times(2)

	_, outcome, err := s.service.Reconcile(s.later(time.Minute), c.Fingerprint)
	s.Require().NoError(err)
	s.Equal(ReconcileWaiting, outcome)
	s.Equal(models.StatusPending, s.stored(c.Fingerprint).Status)

	got, outcome, err := s.service.Reconcile(s.later(time.Hour), c.Fingerprint)
	s.Require().NoError(err)
	s.Equal(ReconcileAbandoned, outcome)
	s.Equal(models.StatusFailed, got.Status)
	s.Equal(reasonTransactionNotObserved, got.FailureReason)
}

func (s *ServiceSuite) TestReconcileStillMining() {
	c := s.pendingWithRef(1)
	s.ledger.EXPECT().ReadTransaction(gomock.Any(), c.TxReference).Return(ledger.PresentTransaction(ledger.TransactionDetails{
		Reference: c.TxReference,
		Status:    ledger.TxPending,
	}), nil)

	_, outcome, err := s.service.Reconcile(s.later(2*time.Hour), c.Fingerprint)

	s.Require().NoError(err)
	s.Equal(ReconcileWaiting, outcome, "a transaction the node still knows is never abandoned")
}

// Anchor lost the ledger before submitting: the credential waits, then is
// abandoned once the window has passed, after which it can be re-anchored.
func (s *ServiceSuite) TestReconcileWithoutSubmission() {
	c := s.issue(1)
	s.ledger.EXPECT().SignerReady().Return(nil).Times(2)
	s.ledger.EXPECT().Anchor(gomock.Any(), c.Fingerprint, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeLedgerUnavailable, "node unreachable"))

	_, err := s.service.Anchor(s.ctx, c.Fingerprint)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))

	_, outcome, err := s.service.Reconcile(s.later(10*time.Minute), c.Fingerprint)
	s.Require().NoError(err)
	s.Equal(ReconcileWaiting, outcome)

	got, outcome, err := s.service.Reconcile(s.later(31*time.Minute), c.Fingerprint)
	s.Require().NoError(err)
	s.Equal(ReconcileAbandoned, outcome)
	s.Equal(reasonSubmissionNotObserved, got.FailureReason)

	s.ledger.EXPECT().Anchor(gomock.Any(), c.Fingerprint, gomock.Any()).Return(confirmedReceipt(3), nil)
	result, err := s.service.Anchor(s.later(32*time.Minute), c.Fingerprint)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, result.Credential.Status)
}

func (s *ServiceSuite) TestReconcileLedgerErrorLeavesCredential() {
	c := s.pendingWithRef(1)
	ledgerErr := dErrors.New(dErrors.CodeLedgerUnavailable, "node unreachable")
	s.ledger.EXPECT().ReadTransaction(gomock.Any(), c.TxReference).Return(ledger.TransactionResult{}, ledgerErr)

	_, _, err := s.service.Reconcile(s.later(2*time.Hour), c.Fingerprint)

	s.ErrorIs(err, ledgerErr)
	s.Equal(models.StatusPending, s.stored(c.Fingerprint).Status)
}

func (s *ServiceSuite) TestReconcileNotPending() {
	c := s.issue(1)

	got, outcome, err := s.service.Reconcile(s.ctx, c.Fingerprint)

	s.Require().NoError(err)
	s.Equal(ReconcileNotPending, outcome)
	s.Equal(models.StatusUnanchored, got.Status)
}

func (s *ServiceSuite) TestReconcileUnknown() {
	_, _, err := s.service.Reconcile(s.ctx, testutil.NewTestCredential(testutil.NewTestFields(404)).Fingerprint)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListPending() {
	s.pendingWithRef(1)
	s.pendingWithoutRef(2)
	s.issue(3)

	pending, err := s.service.ListPending(s.ctx, s.issuedAt.Add(time.Second), 10)

	s.Require().NoError(err)
	s.Len(pending, 2)
}

func (s *ServiceSuite) TestAbandonWindowExceedsLedgerTimeout() {
	svc := New(s.store, s.ledger, s.service.logger, WithLedgerTimeout(10*time.Minute), WithAbandonAfter(time.Minute))
	s.Equal(20*time.Minute, svc.abandonAfter)
}
