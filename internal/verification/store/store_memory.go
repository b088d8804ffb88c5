package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"certledger/internal/verification/models"
	"certledger/pkg/platform/sentinel"
)

// InMemoryStore is a process-local history, used in tests and when no
// database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []*models.Attempt
	ids      map[uuid.UUID]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{ids: make(map[uuid.UUID]struct{})}
}

func (s *InMemoryStore) Append(_ context.Context, attempt *models.Attempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[attempt.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	copyAttempt := *attempt
	s.attempts = append(s.attempts, &copyAttempt)
	s.ids[attempt.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Attempt, error) {
	s.mu.RLock()
	matched := make([]*models.Attempt, 0)
	// Walk newest-appended first so equal timestamps keep a stable order.
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if filter.Matches(s.attempts[i]) {
			copyAttempt := *s.attempts[i]
			matched = append(matched, &copyAttempt)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CheckedAt.After(matched[j].CheckedAt)
	})
	if filter.Offset >= len(matched) {
		return []*models.Attempt{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len returns the number of stored attempts.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
