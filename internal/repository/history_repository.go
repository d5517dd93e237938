package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// HistoryRepository stores the immutable request audit trail.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.RequestHistory) error
	ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository instantiates the repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.RequestHistory) error {
	const query = `
        INSERT INTO request_history (request_id, changed_by, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.RequestID,
		entry.ChangedByID,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *historyRepository) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, request_id, changed_by, change_type, old_value, new_value, created_at
        FROM request_history
        WHERE request_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RequestHistory
	for rows.Next() {
		var entry domain.RequestHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ChangedByID,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
