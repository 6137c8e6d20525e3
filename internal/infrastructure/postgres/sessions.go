package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claytile-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

type SessionRepo struct {
	db DB
}

func NewSessionRepo(db DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token, identifier, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		s.Token, s.Identifier, s.CreatedAt, time.Unix(s.ExpiresAt, 0).UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetLive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var (
		s         domain.Session
		expiresAt time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT token, identifier, created_at, expires_at FROM sessions WHERE token = $1 AND expires_at > $2`,
		token, now).Scan(&s.Token, &s.Identifier, &s.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	s.ExpiresAt = expiresAt.Unix()
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
