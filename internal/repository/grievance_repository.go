package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-portal/internal/domain"
)

// GrievanceFilter narrows listings. Zero values mean no restriction; a
// zero Limit returns every match.
type GrievanceFilter struct {
	SubmitterID *string
	Categories  []domain.Category
	Statuses    []domain.Status
	SearchTerm  *string
	Limit       int
	Offset      int
}

// GrievanceRepository encapsulates grievance persistence.
type GrievanceRepository interface {
	Create(ctx context.Context, grievance *domain.Grievance) error
	// UpdateWithHistory stores a status change and its audit entry in one
	// transaction. Neither is kept when either write fails.
	UpdateWithHistory(ctx context.Context, grievance *domain.Grievance, entry *domain.GrievanceHistory) error
	GetByID(ctx context.Context, id int64) (*domain.Grievance, error)
	List(ctx context.Context, filter GrievanceFilter) ([]domain.Grievance, error)
}

type grievanceRepository struct {
	pool *pgxpool.Pool
}

// NewGrievanceRepository instantiates repository.
func NewGrievanceRepository(pool *pgxpool.Pool) GrievanceRepository {
	return &grievanceRepository{pool: pool}
}

const grievanceColumns = `id, submitter_id, submitter_name, category, description, status, resolution_notes,
               attachment_key, file_name, file_type, file_size, created_at, updated_at`

func (r *grievanceRepository) Create(ctx context.Context, grievance *domain.Grievance) error {
	const query = `
        INSERT INTO grievances (submitter_id, submitter_name, category, description, status,
                                attachment_key, file_name, file_type, file_size)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`

	var key, name, contentType *string
	var size *int64
	if att := grievance.Attachment; att != nil {
		key, name, contentType, size = &att.Key, &att.FileName, &att.ContentType, &att.SizeBytes
	}
	return translate(r.pool.QueryRow(ctx, query,
		grievance.SubmitterID,
		grievance.SubmitterName,
		grievance.Category,
		grievance.Description,
		grievance.Status,
		key,
		name,
		contentType,
		size,
	).Scan(&grievance.ID, &grievance.CreatedAt, &grievance.UpdatedAt))
}

// UpdateWithHistory writes the mutable fields only: status, notes and
// updated_at. updated_at never moves backwards.
func (r *grievanceRepository) UpdateWithHistory(ctx context.Context, grievance *domain.Grievance, entry *domain.GrievanceHistory) error {
	const query = `
        UPDATE grievances SET status=$1, resolution_notes=$2, updated_at=GREATEST($3, updated_at)
        WHERE id=$4
        RETURNING updated_at`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		updatedAt := grievance.UpdatedAt
		err := tx.QueryRow(ctx, query,
			grievance.Status,
			grievance.ResolutionNotes,
			grievance.UpdatedAt,
			grievance.ID,
		).Scan(&updatedAt)
		if err != nil {
			return translate(err)
		}
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
		grievance.UpdatedAt = updatedAt
		return nil
	})
}

func (r *grievanceRepository) GetByID(ctx context.Context, id int64) (*domain.Grievance, error) {
	query := `SELECT ` + grievanceColumns + ` FROM grievances WHERE id=$1`
	grievance, err := scanGrievance(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return grievance, nil
}

func (r *grievanceRepository) List(ctx context.Context, filter GrievanceFilter) ([]domain.Grievance, error) {
	base := `SELECT ` + grievanceColumns + ` FROM grievances`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SubmitterID != nil {
		args = append(args, *filter.SubmitterID)
		clauses = append(clauses, fmt.Sprintf("submitter_id=$%d", len(args)))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(description) LIKE %s OR LOWER(submitter_name) LIKE %s)", placeholder, placeholder))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY id ASC`, base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Grievance
	for rows.Next() {
		grievance, err := scanGrievance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *grievance)
	}
	return result, rows.Err()
}

func scanGrievance(row pgx.Row) (*domain.Grievance, error) {
	var (
		grievance              domain.Grievance
		key, name, contentType *string
		size                   *int64
	)
	if err := row.Scan(
		&grievance.ID,
		&grievance.SubmitterID,
		&grievance.SubmitterName,
		&grievance.Category,
		&grievance.Description,
		&grievance.Status,
		&grievance.ResolutionNotes,
		&key,
		&name,
		&contentType,
		&size,
		&grievance.CreatedAt,
		&grievance.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if key != nil {
		grievance.Attachment = &domain.Attachment{Key: *key}
		if name != nil {
			grievance.Attachment.FileName = *name
		}
		if contentType != nil {
			grievance.Attachment.ContentType = *contentType
		}
		if size != nil {
			grievance.Attachment.SizeBytes = *size
		}
	}
	return &grievance, nil
}
