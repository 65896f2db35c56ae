package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrLoginTaken     = errors.New("login already taken")
	ErrInvalidPayload = errors.New("invalid payload")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID           int64
	Login        string
	PasswordHash string
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) FindByLogin(ctx context.Context, login string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(login) == "" {
		return UserRecord{}, ErrInvalidPayload
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, login, password_hash
FROM users
WHERE login = $1
`, login).Scan(&user.ID, &user.Login, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by login: %w", err)
	}

	return user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return UserRecord{}, ErrInvalidPayload
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, login, password_hash
FROM users
WHERE id = $1
`, id).Scan(&user.ID, &user.Login, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}

// Create inserts a new user. The unique index on login is the authoritative
// guard against concurrent registrations with the same name.
func (r *UserRepo) Create(ctx context.Context, login, passwordHash string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(login) == "" || strings.TrimSpace(passwordHash) == "" {
		return UserRecord{}, ErrInvalidPayload
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (login, password_hash, created_at)
VALUES ($1, $2, NOW())
RETURNING id, login, password_hash
`, login, passwordHash).Scan(&user.ID, &user.Login, &user.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrLoginTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}
