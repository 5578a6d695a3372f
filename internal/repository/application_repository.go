package repository

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	OwnerID    *string
	Department *string
	Statuses   []domain.ApplicationStatus
	Limit      int
	Offset     int
}

// ApplicationRepository encapsulates application persistence.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]domain.Application, error)
	// CompareAndSwap writes every mutable field of app only if the stored
	// status still equals expected and the stored version still equals
	// app.Version. On success app.Version is advanced. It returns
	// ErrStatusMismatch when the record changed and ErrNotFound when it is gone.
	CompareAndSwap(ctx context.Context, app *domain.Application, expected domain.ApplicationStatus) error
	Delete(ctx context.Context, id string) error
}

type applicationRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewApplicationRepository instantiates repository.
func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &applicationRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var applicationColumns = []string{
	"id", "owner_id", "department", "semester", "courses", "internships",
	"status", "remarks", "pdf_ref", "reviewed_by", "reviewed_at", "created_at", "updated_at", "version",
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	query, args, err := r.sb.Insert("applications").
		Columns("owner_id", "department", "semester", "courses", "internships", "status", "remarks").
		Values(app.OwnerID, app.Department, app.Semester, coursesOrEmpty(app.Courses), internshipsOrEmpty(app.Internships), app.Status, app.Remarks).
		Suffix("RETURNING id, created_at, updated_at, version").
		ToSql()
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt, &app.Version)
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query, args, err := r.sb.Select(applicationColumns...).
		From("applications").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanApplication(r.pool.QueryRow(ctx, query, args...))
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]domain.Application, error) {
	builder := r.sb.Select(applicationColumns...).From("applications")
	if filter.OwnerID != nil {
		builder = builder.Where(squirrel.Eq{"owner_id": *filter.OwnerID})
	}
	if filter.Department != nil {
		builder = builder.Where(squirrel.Eq{"department": *filter.Department})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(squirrel.Eq{"status": filter.Statuses})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query, args, err := builder.
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *app)
	}
	return result, rows.Err()
}

func (r *applicationRepository) CompareAndSwap(ctx context.Context, app *domain.Application, expected domain.ApplicationStatus) error {
	if !validID(app.ID) {
		return ErrNotFound
	}
	query, args, err := r.sb.Update("applications").
		Set("semester", app.Semester).
		Set("courses", coursesOrEmpty(app.Courses)).
		Set("internships", internshipsOrEmpty(app.Internships)).
		Set("status", app.Status).
		Set("remarks", app.Remarks).
		Set("pdf_ref", app.PDFRef).
		Set("reviewed_by", app.ReviewedBy).
		Set("reviewed_at", app.ReviewedAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": app.ID, "status": expected, "version": app.Version}).
		Suffix("RETURNING updated_at, version").
		ToSql()
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&app.UpdatedAt, &app.Version)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := r.GetByID(ctx, app.ID); getErr != nil {
		return getErr
	}
	return ErrStatusMismatch
}

func (r *applicationRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	query, args, err := r.sb.Delete("applications").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return execOne(ctx, r.pool, query, args...)
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var app domain.Application
	if err := row.Scan(
		&app.ID,
		&app.OwnerID,
		&app.Department,
		&app.Semester,
		&app.Courses,
		&app.Internships,
		&app.Status,
		&app.Remarks,
		&app.PDFRef,
		&app.ReviewedBy,
		&app.ReviewedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
		&app.Version,
	); err != nil {
		return nil, err
	}
	return &app, nil
}

func coursesOrEmpty(items []domain.CourseItem) []domain.CourseItem {
	if items == nil {
		return []domain.CourseItem{}
	}
	return items
}

func internshipsOrEmpty(items []domain.InternshipItem) []domain.InternshipItem {
	if items == nil {
		return []domain.InternshipItem{}
	}
	return items
}
