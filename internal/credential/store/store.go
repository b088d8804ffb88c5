package store

import (
	"context"
	"fmt"
	"time"

	"certledger/internal/credential/models"
	"certledger/pkg/platform/sentinel"
)

// Store persists credentials and their anchoring state.
//
// Error contract:
//   - sentinel.ErrNotFound when the fingerprint is unknown
//   - sentinel.ErrAlreadyExists when Create hits an existing fingerprint
//   - *TransitionError (matching sentinel.ErrInvalidState) when the current
//     status forbids the requested change
//   - wrapped infrastructure errors otherwise
//
// Every transition is a single compare-and-set against the stored status, so
// two concurrent anchoring requests for one fingerprint cannot both move it
// to pending.
type Store interface {
	Create(ctx context.Context, credential *models.Credential) error
	Get(ctx context.Context, fp models.Fingerprint) (*models.Credential, error)
	// MarkPending moves an unanchored or failed credential to pending and
	// clears any previous failure.
	MarkPending(ctx context.Context, fp models.Fingerprint, at time.Time) (*models.Credential, error)
	// RecordSubmission stores the transaction reference of a pending credential.
	RecordSubmission(ctx context.Context, fp models.Fingerprint, txRef string) error
	MarkAnchored(ctx context.Context, fp models.Fingerprint, txRef string, at time.Time) (*models.Credential, error)
	MarkFailed(ctx context.Context, fp models.Fingerprint, reason string) (*models.Credential, error)
	// Delete removes an unanchored credential.
	Delete(ctx context.Context, fp models.Fingerprint) error
	// ListPending returns credentials pending since before olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Credential, error)
}

// TransitionError reports a refused state change and the status that blocked it.
// An empty To means deletion.
type TransitionError struct {
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot delete credential in status %s", e.From)
	}
	return fmt.Sprintf("cannot move credential from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return sentinel.ErrInvalidState
}
