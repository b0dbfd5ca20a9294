package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// GrievanceHistoryRepository reads audit entries. Entries are written by
// GrievanceRepository.UpdateWithHistory.
type GrievanceHistoryRepository interface {
	ListByGrievance(ctx context.Context, grievanceID int64) ([]domain.GrievanceHistory, error)
}

type grievanceHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewGrievanceHistoryRepository builds repository.
func NewGrievanceHistoryRepository(pool *pgxpool.Pool) GrievanceHistoryRepository {
	return &grievanceHistoryRepository{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertHistory(ctx context.Context, q rowQuerier, history *domain.GrievanceHistory) error {
	const query = `
        INSERT INTO grievance_history (grievance_id, actor_id, actor_role, old_status, new_status, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return translate(q.QueryRow(ctx, query,
		history.GrievanceID,
		history.ActorID,
		history.ActorRole,
		history.OldStatus,
		history.NewStatus,
		history.Notes,
	).Scan(&history.ID, &history.CreatedAt))
}

func (r *grievanceHistoryRepository) ListByGrievance(ctx context.Context, grievanceID int64) ([]domain.GrievanceHistory, error) {
	const query = `
        SELECT id, grievance_id, actor_id, actor_role, old_status, new_status, notes, created_at
        FROM grievance_history WHERE grievance_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, grievanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GrievanceHistory
	for rows.Next() {
		var history domain.GrievanceHistory
		if err := rows.Scan(
			&history.ID,
			&history.GrievanceID,
			&history.ActorID,
			&history.ActorRole,
			&history.OldStatus,
			&history.NewStatus,
			&history.Notes,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
