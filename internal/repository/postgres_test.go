package repository

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	apps := NewApplicationRepository(nil)

	_, err := apps.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, apps.Delete(ctx, "abc"), ErrNotFound)
	assert.ErrorIs(t, apps.CompareAndSwap(ctx, &domain.Application{ID: "abc"}, domain.ApplicationStatusPending), ErrNotFound)

	_, err = NewUserRepository(nil).GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := NewApplicationHistoryRepository(nil).ListByApplication(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// newTestPool connects to TEST_POSTGRES_DSN, applies the schema and empties
// the tables. The database is disposable.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN must be set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	sort.Strings(files)
	for _, file := range files {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, file)
	}
	_, err = pool.Exec(ctx, `TRUNCATE application_history, applications, users CASCADE`)
	require.NoError(t, err)
	return pool
}

func createTestUser(t *testing.T, users UserRepository, email string) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Alice", Email: email, PasswordHash: "hash", Role: domain.RoleStudent, Department: "CSE"}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestPostgresUserResetLifecycle(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)

	u := createTestUser(t, users, "alice@college.edu")
	assert.ErrorIs(t, users.Create(ctx, &domain.User{Name: "A", Email: u.Email, PasswordHash: "x", Role: domain.RoleStudent, Department: "CSE"}), ErrDuplicateEmail)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, users.SetResetToken(ctx, u.ID, "digest-1", now.Add(10*time.Minute)))

	require.NoError(t, users.ClearResetToken(ctx, u.ID, "digest-0"))
	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPendingReset())

	_, err = users.ConsumeResetToken(ctx, "digest-1", now.Add(10*time.Minute), "new-hash")
	assert.ErrorIs(t, err, ErrNotFound)

	consumed, err := users.ConsumeResetToken(ctx, "digest-1", now, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", consumed.PasswordHash)
	assert.False(t, consumed.HasPendingReset())

	_, err = users.ConsumeResetToken(ctx, "digest-1", now, "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresApplicationCompareAndSwap(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	owner := createTestUser(t, NewUserRepository(pool), "owner@college.edu")
	apps := NewApplicationRepository(pool)

	app := &domain.Application{
		OwnerID:    owner.ID,
		Department: "CSE",
		Semester:   5,
		Courses:    []domain.CourseItem{{CourseCode: "NPTEL-01", CourseName: "Cloud", Platform: "NPTEL", Credits: 3}},
		Status:     domain.ApplicationStatusPending,
	}
	require.NoError(t, apps.Create(ctx, app))
	assert.EqualValues(t, 1, app.Version)

	stale := *app

	edit := *app
	edit.Semester = 6
	require.NoError(t, apps.CompareAndSwap(ctx, &edit, domain.ApplicationStatusPending))
	assert.EqualValues(t, 2, edit.Version)

	stale.Status = domain.ApplicationStatusRejected
	assert.ErrorIs(t, apps.CompareAndSwap(ctx, &stale, domain.ApplicationStatusPending), ErrStatusMismatch)

	stored, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusPending, stored.Status)
	assert.Equal(t, 6, stored.Semester)
	require.Len(t, stored.Courses, 1)
	assert.Equal(t, "NPTEL-01", stored.Courses[0].CourseCode)

	rejected := *stored
	rejected.Status = domain.ApplicationStatusRejected
	rejected.Remarks = "missing transcript"
	require.NoError(t, apps.CompareAndSwap(ctx, &rejected, domain.ApplicationStatusPending))

	again := *stored
	again.Status = domain.ApplicationStatusApproved
	assert.ErrorIs(t, apps.CompareAndSwap(ctx, &again, domain.ApplicationStatusPending), ErrStatusMismatch)

	missing := domain.Application{ID: "00000000-0000-0000-0000-000000000000", Status: domain.ApplicationStatusApproved}
	assert.ErrorIs(t, apps.CompareAndSwap(ctx, &missing, domain.ApplicationStatusPending), ErrNotFound)

	owned := owner.ID
	list, err := apps.List(ctx, ApplicationFilter{OwnerID: &owned, Statuses: []domain.ApplicationStatus{domain.ApplicationStatusRejected}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "missing transcript", list[0].Remarks)

	history := NewApplicationHistoryRepository(pool)
	from := domain.ApplicationStatusPending
	require.NoError(t, history.Create(ctx, &domain.ApplicationHistory{
		ApplicationID: app.ID,
		ChangedByID:   owner.ID,
		ChangedByRole: domain.RoleFaculty,
		FromStatus:    &from,
		ToStatus:      domain.ApplicationStatusRejected,
		Remarks:       "missing transcript",
	}))
	entries, err := history.ListByApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ApplicationStatusRejected, entries[0].ToStatus)

	require.NoError(t, apps.Delete(ctx, app.ID))
	_, err = apps.GetByID(ctx, app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
