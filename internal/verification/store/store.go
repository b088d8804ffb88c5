// Package store keeps the append-only history of verification attempts.
package store

import (
	"context"

	"certledger/internal/verification/models"
)

// Store appends and lists verification attempts. Attempts are never updated
// or deleted.
//
// Error contract: sentinel.ErrAlreadyExists when an attempt id is reused,
// wrapped infrastructure errors otherwise. List expects a normalized filter.
type Store interface {
	Append(ctx context.Context, attempt *models.Attempt) error
	List(ctx context.Context, filter models.Filter) ([]*models.Attempt, error)
}
