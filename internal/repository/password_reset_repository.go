package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetCode is a one-time code mailed to an identity.
type PasswordResetCode struct {
	ID         string
	IdentityID string
	Code       string
	ExpiresAt  time.Time
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// PasswordResetRepository manages password reset code persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, code *PasswordResetCode) error
	// GetLatest returns the newest unused code issued to the identity.
	GetLatest(ctx context.Context, identityID string) (*PasswordResetCode, error)
	MarkUsed(ctx context.Context, id string) error
	// Purge deletes codes that expired or were used before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type passwordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(pool *pgxpool.Pool) PasswordResetRepository {
	return &passwordResetRepository{pool: pool}
}

func (r *passwordResetRepository) Create(ctx context.Context, code *PasswordResetCode) error {
	const query = `
        INSERT INTO password_reset_codes (identity_id, code, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return translate(r.pool.QueryRow(ctx, query,
		code.IdentityID,
		code.Code,
		code.ExpiresAt,
	).Scan(&code.ID, &code.CreatedAt))
}

func (r *passwordResetRepository) GetLatest(ctx context.Context, identityID string) (*PasswordResetCode, error) {
	const query = `
        SELECT id, identity_id, code, expires_at, used_at, created_at
        FROM password_reset_codes
        WHERE identity_id=$1 AND used_at IS NULL
        ORDER BY created_at DESC LIMIT 1`
	var code PasswordResetCode
	if err := r.pool.QueryRow(ctx, query, identityID).Scan(
		&code.ID,
		&code.IdentityID,
		&code.Code,
		&code.ExpiresAt,
		&code.UsedAt,
		&code.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `
        UPDATE password_reset_codes SET used_at=NOW()
        WHERE id=$1 AND used_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *passwordResetRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
        DELETE FROM password_reset_codes
        WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
