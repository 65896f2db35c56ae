package locations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	pgrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/postgres"
	"github.com/LuzhinLoop/weather-viewer/internal/services/weather"
)

const (
	DefaultMaxPerUser = 5

	nameMaxLen = 100
	coordScale = 1e4
)

// LocationStore is the persistence surface for saved locations. The
// tx-taking methods run inside the add transaction so quota and duplicate
// checks see a consistent view.
type LocationStore interface {
	CountByUser(ctx context.Context, tx pgx.Tx, userID int64) (int, error)
	ExistsAt(ctx context.Context, tx pgx.Tx, userID int64, lat, lon float64) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, userID int64, name string, lat, lon float64) (pgrepo.LocationRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]pgrepo.LocationRecord, error)
	DeleteByUser(ctx context.Context, userID, locationID int64) (int64, error)
}

// WeatherGateway is the upstream weather provider surface.
type WeatherGateway interface {
	Current(ctx context.Context, lat, lon float64) (weather.Snapshot, error)
	Geocode(ctx context.Context, query string, limit int) ([]weather.Place, error)
}

type Service struct {
	store      LocationStore
	gateway    WeatherGateway
	maxPerUser int
	logger     *zap.Logger
	runTx      func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

func NewService(pool *pgxpool.Pool, store LocationStore, gateway WeatherGateway, maxPerUser int, logger *zap.Logger) *Service {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:      store,
		gateway:    gateway,
		maxPerUser: maxPerUser,
		logger:     logger,
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			return pgrepo.WithTx(ctx, pool, fn)
		},
	}
}

// Add saves a location for a user. Coordinates are rounded to four decimal
// places before any comparison or write, so near-identical points collapse
// into one saved row. Quota and duplicate checks run in one transaction with
// the insert; the unique index is the backstop for racing duplicates.
func (s *Service) Add(ctx context.Context, userID int64, in AddInput) (Saved, error) {
	if userID <= 0 {
		return Saved{}, fmt.Errorf("invalid user id: %w", ErrValidation)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > nameMaxLen {
		return Saved{}, fmt.Errorf("location name must be 1..%d characters: %w", nameMaxLen, ErrValidation)
	}
	lat, lon, err := normalizeCoords(in.Latitude, in.Longitude)
	if err != nil {
		return Saved{}, err
	}

	var record pgrepo.LocationRecord
	err = s.runTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		count, err := s.store.CountByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count >= s.maxPerUser {
			return ErrQuotaExceeded
		}

		exists, err := s.store.ExistsAt(ctx, tx, userID, lat, lon)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateLocation
		}

		record, err = s.store.Insert(ctx, tx, userID, name, lat, lon)
		if errors.Is(err, pgrepo.ErrDuplicateCoords) {
			return ErrDuplicateLocation
		}
		return err
	})
	if err != nil {
		return Saved{}, err
	}

	return toSaved(record), nil
}

// Delete removes a location only when it belongs to the user. A foreign or
// unknown id reports not found instead of leaking whose row it was.
func (s *Service) Delete(ctx context.Context, userID, locationID int64) error {
	if userID <= 0 || locationID <= 0 {
		return fmt.Errorf("invalid identifier: %w", ErrValidation)
	}

	affected, err := s.store.DeleteByUser(ctx, userID, locationID)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Dashboard lists the user's saved locations with current conditions. Each
// location is fetched concurrently; a failed fetch drops that one item and
// the rest keep their stored order.
func (s *Service) Dashboard(ctx context.Context, userID int64) ([]DashboardItem, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id: %w", ErrValidation)
	}

	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	slots := make([]*DashboardItem, len(records))
	var wg sync.WaitGroup
	for i, record := range records {
		wg.Add(1)
		go func(i int, record pgrepo.LocationRecord) {
			defer wg.Done()

			snapshot, err := s.gateway.Current(ctx, record.Latitude, record.Longitude)
			if err != nil {
				s.logger.Warn("dashboard item skipped",
					zap.Int64("location_id", record.ID),
					zap.String("name", record.Name),
					zap.Error(err),
				)
				return
			}
			slots[i] = &DashboardItem{Location: toSaved(record), Weather: snapshot}
		}(i, record)
	}
	wg.Wait()

	items := make([]DashboardItem, 0, len(records))
	for _, slot := range slots {
		if slot != nil {
			items = append(items, *slot)
		}
	}
	return items, nil
}

// Search resolves a free-text place query to candidates. Upstream failures
// surface to the caller so the UI can say the provider is down.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query must not be empty: %w", ErrValidation)
	}
	return s.gateway.Geocode(ctx, query, limit)
}

func normalizeCoords(lat, lon float64) (float64, float64, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, fmt.Errorf("coordinates must be finite: %w", ErrValidation)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be in [-90, 90]: %w", ErrValidation)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude must be in [-180, 180]: %w", ErrValidation)
	}
	return round4(lat), round4(lon), nil
}

func round4(v float64) float64 {
	return math.Round(v*coordScale) / coordScale
}

func toSaved(record pgrepo.LocationRecord) Saved {
	return Saved{
		ID:        record.ID,
		Name:      record.Name,
		Latitude:  record.Latitude,
		Longitude: record.Longitude,
	}
}
