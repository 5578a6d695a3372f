package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/credit-transfer/internal/domain"
)

// ApplicationHistoryRepository stores audit entries.
type ApplicationHistoryRepository interface {
	Create(ctx context.Context, entry *domain.ApplicationHistory) error
	ListByApplication(ctx context.Context, applicationID string) ([]domain.ApplicationHistory, error)
}

type applicationHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationHistoryRepository builds repository.
func NewApplicationHistoryRepository(pool *pgxpool.Pool) ApplicationHistoryRepository {
	return &applicationHistoryRepository{pool: pool}
}

func (r *applicationHistoryRepository) Create(ctx context.Context, entry *domain.ApplicationHistory) error {
	const query = `
        INSERT INTO application_history (application_id, changed_by_id, changed_by_role, from_status, to_status, remarks)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ApplicationID,
		entry.ChangedByID,
		entry.ChangedByRole,
		entry.FromStatus,
		entry.ToStatus,
		entry.Remarks,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *applicationHistoryRepository) ListByApplication(ctx context.Context, applicationID string) ([]domain.ApplicationHistory, error) {
	const query = `
        SELECT id, application_id, changed_by_id, changed_by_role, from_status, to_status, remarks, created_at
        FROM application_history WHERE application_id=$1 ORDER BY created_at ASC`
	if !validID(applicationID) {
		return []domain.ApplicationHistory{}, nil
	}
	rows, err := r.pool.Query(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApplicationHistory
	for rows.Next() {
		var entry domain.ApplicationHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.ApplicationID,
			&entry.ChangedByID,
			&entry.ChangedByRole,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Remarks,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
