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

var ErrDuplicateCoords = errors.New("location with same coordinates exists")

type LocationRepo struct {
	pool *pgxpool.Pool
}

type LocationRecord struct {
	ID        int64
	UserID    int64
	Name      string
	Latitude  float64
	Longitude float64
}

func NewLocationRepo(pool *pgxpool.Pool) *LocationRepo {
	return &LocationRepo{pool: pool}
}

func (r *LocationRepo) CountByUser(ctx context.Context, tx pgx.Tx, userID int64) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("tx is nil")
	}
	if userID <= 0 {
		return 0, ErrInvalidPayload
	}

	var count int
	err := tx.QueryRow(ctx, `
SELECT COUNT(*)
FROM locations
WHERE user_id = $1
`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count locations by user: %w", err)
	}

	return count, nil
}

func (r *LocationRepo) ExistsAt(ctx context.Context, tx pgx.Tx, userID int64, lat, lon float64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("tx is nil")
	}
	if userID <= 0 {
		return false, ErrInvalidPayload
	}

	var one int
	err := tx.QueryRow(ctx, `
SELECT 1
FROM locations
WHERE user_id = $1
  AND latitude = $2
  AND longitude = $3
LIMIT 1
`, userID, lat, lon).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check location existence: %w", err)
	}

	return true, nil
}

// Insert persists a location inside the caller's transaction. The unique
// index on (user_id, latitude, longitude) is the authoritative backstop
// against a racing duplicate that slipped past ExistsAt.
func (r *LocationRepo) Insert(ctx context.Context, tx pgx.Tx, userID int64, name string, lat, lon float64) (LocationRecord, error) {
	if tx == nil {
		return LocationRecord{}, fmt.Errorf("tx is nil")
	}
	if userID <= 0 || strings.TrimSpace(name) == "" {
		return LocationRecord{}, ErrInvalidPayload
	}

	var loc LocationRecord
	err := tx.QueryRow(ctx, `
INSERT INTO locations (user_id, name, latitude, longitude)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, name, latitude, longitude
`, userID, name, lat, lon).Scan(&loc.ID, &loc.UserID, &loc.Name, &loc.Latitude, &loc.Longitude)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return LocationRecord{}, ErrDuplicateCoords
		}
		return LocationRecord{}, fmt.Errorf("insert location: %w", err)
	}

	return loc, nil
}

func (r *LocationRepo) ListByUser(ctx context.Context, userID int64) ([]LocationRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, ErrInvalidPayload
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, name, latitude, longitude
FROM locations
WHERE user_id = $1
ORDER BY name ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list locations by user: %w", err)
	}
	defer rows.Close()

	var out []LocationRecord
	for rows.Next() {
		var loc LocationRecord
		if err := rows.Scan(&loc.ID, &loc.UserID, &loc.Name, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location rows: %w", err)
	}

	return out, nil
}

// DeleteByUser removes a location only when it belongs to the given user and
// reports how many rows were affected.
func (r *LocationRepo) DeleteByUser(ctx context.Context, userID, locationID int64) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || locationID <= 0 {
		return 0, ErrInvalidPayload
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM locations
WHERE id = $1
  AND user_id = $2
`, locationID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete location by user: %w", err)
	}

	return tag.RowsAffected(), nil
}
