package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/credit-transfer/internal/domain"
	"github.com/spec-kit/credit-transfer/internal/repository"
)

func TestUserStoreUniqueEmail(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{Email: "a@x.edu", Role: domain.RoleStudent}))
	err := s.Create(ctx, &domain.User{Email: "a@x.edu", Role: domain.RoleStudent})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = s.GetByEmail(ctx, "missing@x.edu")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserStoreResetTokenLifecycle(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	u := &domain.User{Email: "a@x.edu", PasswordHash: "old"}
	require.NoError(t, s.Create(ctx, u))

	now := time.Now()
	require.NoError(t, s.SetResetToken(ctx, u.ID, "digest-1", now.Add(time.Minute)))

	// A stale withdrawal must not clear a newer credential.
	require.NoError(t, s.ClearResetToken(ctx, u.ID, "digest-0"))
	stored, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPendingReset())

	_, err = s.ConsumeResetToken(ctx, "digest-1", now.Add(2*time.Minute), "new")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	consumed, err := s.ConsumeResetToken(ctx, "digest-1", now, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", consumed.PasswordHash)
	assert.False(t, consumed.HasPendingReset())

	_, err = s.ConsumeResetToken(ctx, "digest-1", now, "newer")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserStoreReturnsCopies(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	u := &domain.User{Email: "a@x.edu", Role: domain.RoleStudent}
	require.NoError(t, s.Create(ctx, u))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.Role = domain.RoleAdmin

	again, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, again.Role)
}

func TestApplicationStoreCompareAndSwap(t *testing.T) {
	s := NewApplicationStore()
	ctx := context.Background()
	app := &domain.Application{OwnerID: "u1", Department: "CSE", Status: domain.ApplicationStatusPending}
	require.NoError(t, s.Create(ctx, app))

	next := *app
	next.Status = domain.ApplicationStatusApproved
	next.OwnerID = "someone-else"
	require.NoError(t, s.CompareAndSwap(ctx, &next, domain.ApplicationStatusPending))

	stored, err := s.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusApproved, stored.Status)
	assert.Equal(t, "u1", stored.OwnerID)

	again := *app
	again.Status = domain.ApplicationStatusRejected
	assert.ErrorIs(t, s.CompareAndSwap(ctx, &again, domain.ApplicationStatusPending), repository.ErrStatusMismatch)

	missing := domain.Application{ID: "nope", Status: domain.ApplicationStatusApproved}
	assert.ErrorIs(t, s.CompareAndSwap(ctx, &missing, domain.ApplicationStatusPending), repository.ErrNotFound)
}

func TestApplicationStoreRejectsStaleVersion(t *testing.T) {
	s := NewApplicationStore()
	ctx := context.Background()
	app := &domain.Application{OwnerID: "u1", Semester: 5, Status: domain.ApplicationStatusPending}
	require.NoError(t, s.Create(ctx, app))
	assert.EqualValues(t, 1, app.Version)

	stale := *app

	edit := *app
	edit.Semester = 6
	require.NoError(t, s.CompareAndSwap(ctx, &edit, domain.ApplicationStatusPending))
	assert.EqualValues(t, 2, edit.Version)

	stale.Status = domain.ApplicationStatusApproved
	assert.ErrorIs(t, s.CompareAndSwap(ctx, &stale, domain.ApplicationStatusPending), repository.ErrStatusMismatch)

	stored, err := s.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusPending, stored.Status)
	assert.Equal(t, 6, stored.Semester)
}

func TestApplicationStoreConcurrentSwapHasOneWinner(t *testing.T) {
	s := NewApplicationStore()
	ctx := context.Background()
	app := &domain.Application{OwnerID: "u1", Status: domain.ApplicationStatusPending}
	require.NoError(t, s.Create(ctx, app))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := *app
			next.Status = domain.ApplicationStatusApproved
			results <- s.CompareAndSwap(ctx, &next, domain.ApplicationStatusPending)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrStatusMismatch)
	}
	assert.Equal(t, 1, wins)
}

func TestApplicationStoreListFilters(t *testing.T) {
	s := NewApplicationStore()
	ctx := context.Background()
	for i, owner := range []string{"u1", "u1", "u2"} {
		status := domain.ApplicationStatusPending
		if i == 1 {
			status = domain.ApplicationStatusRejected
		}
		require.NoError(t, s.Create(ctx, &domain.Application{OwnerID: owner, Department: "CSE", Status: status}))
	}

	owner := "u1"
	mine, err := s.List(ctx, repository.ApplicationFilter{OwnerID: &owner})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := s.List(ctx, repository.ApplicationFilter{Statuses: []domain.ApplicationStatus{domain.ApplicationStatusPending}})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	page, err := s.List(ctx, repository.ApplicationFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
