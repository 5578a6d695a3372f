package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

// ApplicationStore is an in-memory repository.ApplicationRepository.
type ApplicationStore struct {
	mu   sync.RWMutex
	apps map[string]*domain.Application
}

var _ repository.ApplicationRepository = (*ApplicationStore)(nil)

// NewApplicationStore returns an empty store.
func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{apps: make(map[string]*domain.Application)}
}

func (s *ApplicationStore) Create(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	app.ID = uuid.NewString()
	app.CreatedAt = now
	app.UpdatedAt = now
	app.Version = 1
	s.apps[app.ID] = cloneApplication(app)
	return nil
}

func (s *ApplicationStore) GetByID(_ context.Context, id string) (*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneApplication(stored), nil
}

func (s *ApplicationStore) List(_ context.Context, filter repository.ApplicationFilter) ([]domain.Application, error) {
	s.mu.RLock()
	matched := make([]domain.Application, 0, len(s.apps))
	for _, app := range s.apps {
		if filter.OwnerID != nil && app.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Department != nil && app.Department != *filter.Department {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, app.Status) {
			continue
		}
		matched = append(matched, *cloneApplication(app))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []domain.Application{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func (s *ApplicationStore) CompareAndSwap(_ context.Context, app *domain.Application, expected domain.ApplicationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.apps[app.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected || stored.Version != app.Version {
		return repository.ErrStatusMismatch
	}
	next := cloneApplication(app)
	next.OwnerID = stored.OwnerID
	next.Department = stored.Department
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now()
	next.Version = stored.Version + 1
	s.apps[app.ID] = next
	app.UpdatedAt = next.UpdatedAt
	app.Version = next.Version
	return nil
}

func (s *ApplicationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func cloneApplication(a *domain.Application) *domain.Application {
	cp := *a
	cp.Courses = slices.Clone(a.Courses)
	cp.Internships = slices.Clone(a.Internships)
	if a.PDFRef != nil {
		v := *a.PDFRef
		cp.PDFRef = &v
	}
	if a.ReviewedBy != nil {
		v := *a.ReviewedBy
		cp.ReviewedBy = &v
	}
	if a.ReviewedAt != nil {
		v := *a.ReviewedAt
		cp.ReviewedAt = &v
	}
	return &cp
}
