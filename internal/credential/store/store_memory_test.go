package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/credential/models"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil"
)

func TestInMemoryStoreLifecycle(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

	cred := testutil.NewTestCredential(testutil.NewTestFields(1))
	require.NoError(t, store.Create(ctx, cred))

	fetched, err := store.Get(ctx, cred.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnanchored, fetched.Status)

	// Returned values are copies
	fetched.Fields.HolderName = "Mallory"
	again, err := store.Get(ctx, cred.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, cred.Fields.HolderName, again.Fields.HolderName)

	pending, err := store.MarkPending(ctx, cred.Fingerprint, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, pending.Status)
	require.NotNil(t, pending.PendingSince)

	txRef := testutil.TestTxReference(1)
	require.NoError(t, store.RecordSubmission(ctx, cred.Fingerprint, txRef))

	anchored, err := store.MarkAnchored(ctx, cred.Fingerprint, txRef, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnchored, anchored.Status)
	assert.Equal(t, txRef, anchored.TxReference)
	assert.Nil(t, anchored.PendingSince)

	_, err = store.MarkAnchored(ctx, cred.Fingerprint, txRef, now)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.StatusAnchored, transition.From)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	err = store.Delete(ctx, cred.Fingerprint)
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.StatusAnchored, transition.From)
	assert.Empty(t, transition.To)
}

func TestInMemoryStoreDuplicateCreate(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(1))

	require.NoError(t, store.Create(ctx, cred))
	err := store.Create(ctx, cred)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyExists)
}

func TestInMemoryStoreConcurrentCreate(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(7))

	result := testutil.RunConcurrent(64, func(int) error {
		c := *cred
		return store.Create(ctx, &c)
	})

	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(63), result.Conflicts)
	assert.Zero(t, result.Errors)
}

func TestInMemoryStoreConcurrentMarkPending(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	cred := testutil.NewTestCredential(testutil.NewTestFields(8))
	require.NoError(t, store.Create(ctx, cred))

	now := time.Now()
	result := testutil.RunConcurrent(32, func(int) error {
		_, err := store.MarkPending(ctx, cred.Fingerprint, now)
		return err
	})

	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(31), result.Conflicts)
}

func TestInMemoryStoreTransitions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

	t.Run("anchored requires pending", func(t *testing.T) {
		store := NewInMemory()
		cred := testutil.NewTestCredential(testutil.NewTestFields(1))
		require.NoError(t, store.Create(ctx, cred))

		_, err := store.MarkAnchored(ctx, cred.Fingerprint, testutil.TestTxReference(1), now)
		var transition *TransitionError
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, models.StatusUnanchored, transition.From)
	})

	t.Run("failed can be re-anchored", func(t *testing.T) {
		store := NewInMemory()
		cred := testutil.NewTestCredential(testutil.NewTestFields(2))
		require.NoError(t, store.Create(ctx, cred))
		_, err := store.MarkPending(ctx, cred.Fingerprint, now)
		require.NoError(t, err)
		require.NoError(t, store.RecordSubmission(ctx, cred.Fingerprint, testutil.TestTxReference(2)))

		failed, err := store.MarkFailed(ctx, cred.Fingerprint, "transaction reverted")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, failed.Status)
		assert.Equal(t, "transaction reverted", failed.FailureReason)

		again, err := store.MarkPending(ctx, cred.Fingerprint, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, again.Status)
		assert.Empty(t, again.FailureReason)
		assert.Empty(t, again.TxReference)
	})

	t.Run("submission requires pending", func(t *testing.T) {
		store := NewInMemory()
		cred := testutil.NewTestCredential(testutil.NewTestFields(3))
		require.NoError(t, store.Create(ctx, cred))

		err := store.RecordSubmission(ctx, cred.Fingerprint, testutil.TestTxReference(3))
		assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		store := NewInMemory()
		fp := testutil.NewTestCredential(testutil.NewTestFields(4)).Fingerprint

		_, err := store.Get(ctx, fp)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.MarkPending(ctx, fp, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, fp), sentinel.ErrNotFound)
	})

	t.Run("unanchored can be deleted", func(t *testing.T) {
		store := NewInMemory()
		cred := testutil.NewTestCredential(testutil.NewTestFields(5))
		require.NoError(t, store.Create(ctx, cred))
		require.NoError(t, store.Delete(ctx, cred.Fingerprint))
		_, err := store.Get(ctx, cred.Fingerprint)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStoreListPending(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	base := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)

	var fps []models.Fingerprint
	for i := 0; i < 4; i++ {
		cred := testutil.NewTestCredential(testutil.NewTestFields(i))
		require.NoError(t, store.Create(ctx, cred))
		fps = append(fps, cred.Fingerprint)
	}
	// fps[3] stays unanchored
	for i := 2; i >= 0; i-- {
		_, err := store.MarkPending(ctx, fps[i], base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	got, err := store.ListPending(ctx, base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, fps[0], got[0].Fingerprint)
	assert.Equal(t, fps[1], got[1].Fingerprint)

	got, err = store.ListPending(ctx, base.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fps[0], got[0].Fingerprint)
}
