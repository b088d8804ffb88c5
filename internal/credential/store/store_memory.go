package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"certledger/internal/credential/models"
	"certledger/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in a map guarded by a single RWMutex.
// Used by tests and by the server when no database is configured.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[models.Fingerprint]*models.Credential
}

// NewInMemory constructs an empty in-memory credential store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[models.Fingerprint]*models.Credential)}
}

func (s *InMemoryStore) Create(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credential.Fingerprint]; ok {
		return sentinel.ErrAlreadyExists
	}
	copyCred := *credential
	s.credentials[credential.Fingerprint] = &copyCred
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, fp models.Fingerprint) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[fp]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyCred := *c
	return &copyCred, nil
}

func (s *InMemoryStore) MarkPending(_ context.Context, fp models.Fingerprint, at time.Time) (*models.Credential, error) {
	return s.transition(fp, models.StatusPending, func(c *models.Credential) {
		c.PendingSince = &at
		c.FailureReason = ""
		c.TxReference = ""
	})
}

func (s *InMemoryStore) RecordSubmission(_ context.Context, fp models.Fingerprint, txRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[fp]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != models.StatusPending {
		return &TransitionError{From: c.Status, To: models.StatusPending}
	}
	c.TxReference = txRef
	return nil
}

func (s *InMemoryStore) MarkAnchored(_ context.Context, fp models.Fingerprint, txRef string, at time.Time) (*models.Credential, error) {
	return s.transition(fp, models.StatusAnchored, func(c *models.Credential) {
		c.TxReference = txRef
		c.AnchoredAt = &at
		c.PendingSince = nil
	})
}

func (s *InMemoryStore) MarkFailed(_ context.Context, fp models.Fingerprint, reason string) (*models.Credential, error) {
	return s.transition(fp, models.StatusFailed, func(c *models.Credential) {
		c.FailureReason = reason
		c.PendingSince = nil
	})
}

func (s *InMemoryStore) Delete(_ context.Context, fp models.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[fp]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != models.StatusUnanchored {
		return &TransitionError{From: c.Status}
	}
	delete(s.credentials, fp)
	return nil
}

func (s *InMemoryStore) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, c := range s.credentials {
		if c.Status != models.StatusPending || c.PendingSince == nil || !c.PendingSince.Before(olderThan) {
			continue
		}
		copyCred := *c
		out = append(out, &copyCred)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PendingSince.Before(*out[j].PendingSince)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) transition(fp models.Fingerprint, next models.Status, mutate func(*models.Credential)) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[fp]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !c.Status.CanTransitionTo(next) {
		return nil, &TransitionError{From: c.Status, To: next}
	}
	c.Status = next
	mutate(c)
	copyCred := *c
	return &copyCred, nil
}
