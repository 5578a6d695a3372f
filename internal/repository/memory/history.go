package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

// HistoryStore is an in-memory repository.ApplicationHistoryRepository.
type HistoryStore struct {
	mu      sync.Mutex
	entries map[string][]domain.ApplicationHistory
}

var _ repository.ApplicationHistoryRepository = (*HistoryStore)(nil)

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]domain.ApplicationHistory)}
}

func (s *HistoryStore) Create(_ context.Context, entry *domain.ApplicationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], *entry)
	return nil
}

func (s *HistoryStore) ListByApplication(_ context.Context, applicationID string) ([]domain.ApplicationHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ApplicationHistory, len(s.entries[applicationID]))
	copy(out, s.entries[applicationID])
	return out, nil
}
