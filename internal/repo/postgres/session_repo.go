package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSessionCollision = errors.New("session token collision")

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Create persists a fresh session row. A primary key conflict means the
// generated token already exists; that is surfaced as ErrSessionCollision
// rather than overwriting the existing row.
func (r *SessionRepo) Create(ctx context.Context, token uuid.UUID, userID int64, expiresAt time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || expiresAt.IsZero() {
		return ErrInvalidPayload
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO sessions (id, user_id, expires_at)
VALUES ($1, $2, $3)
`, token, userID, expiresAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSessionCollision
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// FindValidUser resolves a token to its owner if the session exists and has
// not expired. A missing row and an expired row are indistinguishable to the
// caller: both report found=false.
func (r *SessionRepo) FindValidUser(ctx context.Context, token uuid.UUID, now time.Time) (int64, bool, error) {
	if r.pool == nil {
		return 0, false, fmt.Errorf("postgres pool is nil")
	}

	var userID int64
	err := r.pool.QueryRow(ctx, `
SELECT user_id
FROM sessions
WHERE id = $1
  AND expires_at > $2
`, token, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find valid session: %w", err)
	}

	return userID, true, nil
}

// Delete removes the session row. Deleting a token that does not exist is
// not an error.
func (r *SessionRepo) Delete(ctx context.Context, token uuid.UUID) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
DELETE FROM sessions
WHERE id = $1
`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// DeleteExpired removes every session whose expiry has passed and returns
// the number of rows removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM sessions
WHERE expires_at <= $1
`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
