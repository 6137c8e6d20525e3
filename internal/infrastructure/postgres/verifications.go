package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claytile-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

// VerificationRepo stores passcodes in verification_codes. The (email, phone)
// pair is unique, so Upsert replaces any outstanding code for an identifier.
type VerificationRepo struct {
	db DB
}

func NewVerificationRepo(db DB) *VerificationRepo {
	return &VerificationRepo{db: db}
}

const upsertCode = `
INSERT INTO verification_codes (identifier, email, phone, code_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email, phone) DO UPDATE
SET identifier = EXCLUDED.identifier,
    code_hash  = EXCLUDED.code_hash,
    expires_at = EXCLUDED.expires_at,
    created_at = EXCLUDED.created_at`

func (r *VerificationRepo) Upsert(ctx context.Context, v *domain.VerificationCode) error {
	_, err := r.db.Exec(ctx, upsertCode,
		v.Identifier, v.Email, v.Phone, v.CodeHash, time.Unix(v.ExpiresAt, 0).UTC(), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert verification code: %w", err)
	}
	return nil
}

const selectLiveCode = `
SELECT identifier, email, phone, code_hash, expires_at, created_at
FROM verification_codes
WHERE identifier = $1 AND expires_at > $2
ORDER BY created_at DESC
LIMIT 1`

// GetLive returns the most recent unexpired code for identifier.
func (r *VerificationRepo) GetLive(ctx context.Context, identifier string, now time.Time) (*domain.VerificationCode, error) {
	var (
		v         domain.VerificationCode
		expiresAt time.Time
	)
	err := r.db.QueryRow(ctx, selectLiveCode, identifier, now).
		Scan(&v.Identifier, &v.Email, &v.Phone, &v.CodeHash, &expiresAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	v.ExpiresAt = expiresAt.Unix()
	return &v, nil
}

// Consume deletes the code only while it still carries codeHash.
func (r *VerificationRepo) Consume(ctx context.Context, identifier, codeHash string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM verification_codes WHERE identifier = $1 AND code_hash = $2`, identifier, codeHash)
	if err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("verification code already used: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *VerificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
