// Package memory holds mutex-guarded implementations of the repository
// interfaces, used when no database is configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

var _ repository.UserRepository = (*UserStore)(nil)

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Name = user.Name
	stored.Role = user.Role
	stored.Department = user.Department
	stored.RegisterNumber = user.RegisterNumber
	stored.UpdatedAt = time.Now()
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(stored), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.PasswordHash = passwordHash
	stored.ResetTokenHash = nil
	stored.ResetTokenExpiry = nil
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) SetResetToken(_ context.Context, id, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.ResetTokenHash = &digest
	stored.ResetTokenExpiry = &expiresAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) ClearResetToken(_ context.Context, id, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.ResetTokenHash == nil || *stored.ResetTokenHash != digest {
		return nil
	}
	stored.ResetTokenHash = nil
	stored.ResetTokenExpiry = nil
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *UserStore) ConsumeResetToken(_ context.Context, digest string, now time.Time, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.byID {
		if !stored.HasPendingReset() || *stored.ResetTokenHash != digest {
			continue
		}
		if !stored.ResetTokenExpiry.After(now) {
			return nil, repository.ErrNotFound
		}
		stored.PasswordHash = passwordHash
		stored.ResetTokenHash = nil
		stored.ResetTokenExpiry = nil
		stored.UpdatedAt = time.Now()
		return cloneUser(stored), nil
	}
	return nil, repository.ErrNotFound
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.RegisterNumber != nil {
		v := *u.RegisterNumber
		cp.RegisterNumber = &v
	}
	if u.ResetTokenHash != nil {
		v := *u.ResetTokenHash
		cp.ResetTokenHash = &v
	}
	if u.ResetTokenExpiry != nil {
		v := *u.ResetTokenExpiry
		cp.ResetTokenExpiry = &v
	}
	return &cp
}
