//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certledger/internal/credential/models"
	"certledger/internal/credential/store"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil"
	"certledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(1))
	s.Require().NoError(s.store.Create(ctx, cred))

	got, err := s.store.Get(ctx, cred.Fingerprint)
	s.Require().NoError(err)
	s.Equal(cred.Fields, got.Fields)
	s.Equal(models.StatusUnanchored, got.Status)
	s.Equal(cred.VerificationURL, got.VerificationURL)
	s.Nil(got.AnchoredAt)
}

// TestConcurrentCreate verifies that the primary key alone decides which of
// many identical issuances wins.
func (s *PostgresStoreSuite) TestConcurrentCreate() {
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(2))

	result := testutil.RunConcurrent(20, func(int) error {
		c := *cred
		return s.store.Create(ctx, &c)
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(19), result.Conflicts)
	s.Zero(result.Errors)
}

func (s *PostgresStoreSuite) TestConcurrentMarkPending() {
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(3))
	s.Require().NoError(s.store.Create(ctx, cred))

	now := time.Now().UTC()
	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.store.MarkPending(ctx, cred.Fingerprint, now)
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(19), result.Conflicts)
}

func (s *PostgresStoreSuite) TestAnchorLifecycle() {
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(4))
	s.Require().NoError(s.store.Create(ctx, cred))

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.store.MarkPending(ctx, cred.Fingerprint, now)
	s.Require().NoError(err)

	txRef := testutil.TestTxReference(4)
	s.Require().NoError(s.store.RecordSubmission(ctx, cred.Fingerprint, txRef))

	pending, err := s.store.ListPending(ctx, now.Add(time.Second), 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(txRef, pending[0].TxReference)

	anchored, err := s.store.MarkAnchored(ctx, cred.Fingerprint, txRef, now)
	s.Require().NoError(err)
	s.Equal(models.StatusAnchored, anchored.Status)
	s.Require().NotNil(anchored.AnchoredAt)
	s.True(anchored.AnchoredAt.Equal(now))

	_, err = s.store.MarkPending(ctx, cred.Fingerprint, now)
	var transition *store.TransitionError
	s.Require().ErrorAs(err, &transition)
	s.Equal(models.StatusAnchored, transition.From)

	err = s.store.Delete(ctx, cred.Fingerprint)
	s.Require().ErrorAs(err, &transition)
}

func (s *PostgresStoreSuite) TestMarkFailedAndDelete() {
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(5))
	s.Require().NoError(s.store.Create(ctx, cred))

	_, err := s.store.MarkFailed(ctx, cred.Fingerprint, "nope")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	s.Require().NoError(s.store.Delete(ctx, cred.Fingerprint))
	_, err = s.store.Get(ctx, cred.Fingerprint)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, cred.Fingerprint), sentinel.ErrNotFound)
}
