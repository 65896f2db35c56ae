package locations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	pgrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/postgres"
	"github.com/LuzhinLoop/weather-viewer/internal/services/weather"
)

type fakeLocationStore struct {
	rows   map[int64]pgrepo.LocationRecord
	nextID int64
}

func newFakeLocationStore() *fakeLocationStore {
	return &fakeLocationStore{rows: make(map[int64]pgrepo.LocationRecord)}
}

func (f *fakeLocationStore) CountByUser(_ context.Context, _ pgx.Tx, userID int64) (int, error) {
	count := 0
	for _, row := range f.rows {
		if row.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeLocationStore) ExistsAt(_ context.Context, _ pgx.Tx, userID int64, lat, lon float64) (bool, error) {
	for _, row := range f.rows {
		if row.UserID == userID && row.Latitude == lat && row.Longitude == lon {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLocationStore) Insert(_ context.Context, _ pgx.Tx, userID int64, name string, lat, lon float64) (pgrepo.LocationRecord, error) {
	for _, row := range f.rows {
		if row.UserID == userID && row.Latitude == lat && row.Longitude == lon {
			return pgrepo.LocationRecord{}, pgrepo.ErrDuplicateCoords
		}
	}
	f.nextID++
	row := pgrepo.LocationRecord{ID: f.nextID, UserID: userID, Name: name, Latitude: lat, Longitude: lon}
	f.rows[row.ID] = row
	return row, nil
}

func (f *fakeLocationStore) ListByUser(_ context.Context, userID int64) ([]pgrepo.LocationRecord, error) {
	var out []pgrepo.LocationRecord
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeLocationStore) DeleteByUser(_ context.Context, userID, locationID int64) (int64, error) {
	row, ok := f.rows[locationID]
	if !ok || row.UserID != userID {
		return 0, nil
	}
	delete(f.rows, locationID)
	return 1, nil
}

// calls is atomic: Dashboard invokes Current from concurrent goroutines.
type fakeGateway struct {
	failAt map[[2]float64]bool
	places []weather.Place
	geoErr error
	calls  atomic.Int64
}

func (f *fakeGateway) Current(_ context.Context, lat, lon float64) (weather.Snapshot, error) {
	f.calls.Add(1)
	if f.failAt[[2]float64{lat, lon}] {
		return weather.Snapshot{}, weather.ErrUpstreamUnavailable
	}
	temp := 10.0
	return weather.Snapshot{
		CityName:    fmt.Sprintf("city@%.4f,%.4f", lat, lon),
		TempC:       &temp,
		Description: "clear sky",
	}, nil
}

func (f *fakeGateway) Geocode(_ context.Context, _ string, _ int) ([]weather.Place, error) {
	if f.geoErr != nil {
		return nil, f.geoErr
	}
	return f.places, nil
}

func newServiceForTest(store LocationStore, gateway WeatherGateway, maxPerUser int) *Service {
	svc := &Service{
		store:      store,
		gateway:    gateway,
		maxPerUser: maxPerUser,
		logger:     zap.NewNop(),
	}
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestAddRoundsCoordinatesToFourDecimals(t *testing.T) {
	store := newFakeLocationStore()
	svc := newServiceForTest(store, &fakeGateway{}, 5)

	saved, err := svc.Add(context.Background(), 1, AddInput{Name: "London", Latitude: 51.50721, Longitude: -0.12764})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if saved.Latitude != 51.5072 || saved.Longitude != -0.1276 {
		t.Fatalf("coordinates not rounded: %+v", saved)
	}
}

func TestAddRejectsRoundingCollisionAsDuplicate(t *testing.T) {
	store := newFakeLocationStore()
	svc := newServiceForTest(store, &fakeGateway{}, 5)

	ctx := context.Background()
	if _, err := svc.Add(ctx, 1, AddInput{Name: "London", Latitude: 51.5072, Longitude: -0.1276}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.Add(ctx, 1, AddInput{Name: "London again", Latitude: 51.50721, Longitude: -0.12760})
	if !errors.Is(err, ErrDuplicateLocation) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestAddSameCoordsForAnotherUserIsAllowed(t *testing.T) {
	store := newFakeLocationStore()
	svc := newServiceForTest(store, &fakeGateway{}, 5)

	ctx := context.Background()
	if _, err := svc.Add(ctx, 1, AddInput{Name: "London", Latitude: 51.5072, Longitude: -0.1276}); err != nil {
		t.Fatalf("first user add: %v", err)
	}
	if _, err := svc.Add(ctx, 2, AddInput{Name: "London", Latitude: 51.5072, Longitude: -0.1276}); err != nil {
		t.Fatalf("second user add: %v", err)
	}
}

func TestAddEnforcesQuota(t *testing.T) {
	store := newFakeLocationStore()
	svc := newServiceForTest(store, &fakeGateway{}, 5)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		in := AddInput{Name: fmt.Sprintf("place-%d", i), Latitude: float64(i), Longitude: float64(i)}
		if _, err := svc.Add(ctx, 1, in); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	_, err := svc.Add(ctx, 1, AddInput{Name: "one too many", Latitude: 60, Longitude: 60})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}

	if _, err := svc.Add(ctx, 2, AddInput{Name: "other user", Latitude: 60, Longitude: 60}); err != nil {
		t.Fatalf("quota must be per user: %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	svc := newServiceForTest(newFakeLocationStore(), &fakeGateway{}, 5)
	ctx := context.Background()

	cases := []struct {
		name string
		in   AddInput
	}{
		{"empty name", AddInput{Name: "  ", Latitude: 1, Longitude: 1}},
		{"nan latitude", AddInput{Name: "x", Latitude: math.NaN(), Longitude: 1}},
		{"inf longitude", AddInput{Name: "x", Latitude: 1, Longitude: math.Inf(1)}},
		{"latitude out of range", AddInput{Name: "x", Latitude: 91, Longitude: 1}},
		{"longitude out of range", AddInput{Name: "x", Latitude: 1, Longitude: -181}},
	}
	for _, tc := range cases {
		if _, err := svc.Add(ctx, 1, tc.in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: got err=%v want validation", tc.name, err)
		}
	}
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	store := newFakeLocationStore()
	svc := newServiceForTest(store, &fakeGateway{}, 5)

	ctx := context.Background()
	saved, err := svc.Add(ctx, 1, AddInput{Name: "London", Latitude: 51.5072, Longitude: -0.1276})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Delete(ctx, 2, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete must report not found, got %v", err)
	}
	if _, ok := store.rows[saved.ID]; !ok {
		t.Fatalf("foreign delete must not remove the row")
	}

	if err := svc.Delete(ctx, 1, saved.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(ctx, 1, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat delete must report not found, got %v", err)
	}
}

func TestDashboardDropsFailedItemsAndKeepsOrder(t *testing.T) {
	store := newFakeLocationStore()
	gateway := &fakeGateway{failAt: map[[2]float64]bool{{2, 2}: true}}
	svc := newServiceForTest(store, gateway, 5)

	ctx := context.Background()
	names := []string{"a-first", "b-second", "c-third"}
	for i, name := range names {
		in := AddInput{Name: name, Latitude: float64(i + 1), Longitude: float64(i + 1)}
		if _, err := svc.Add(ctx, 1, in); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	items, err := svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after one failure, got %d", len(items))
	}
	if items[0].Location.Name != "a-first" || items[1].Location.Name != "c-third" {
		t.Fatalf("order not preserved: %q, %q", items[0].Location.Name, items[1].Location.Name)
	}
	if got := gateway.calls.Load(); got != 3 {
		t.Fatalf("expected one fetch per location, got %d", got)
	}
}

func TestDashboardEmptyForNewUser(t *testing.T) {
	svc := newServiceForTest(newFakeLocationStore(), &fakeGateway{}, 5)

	items, err := svc.Dashboard(context.Background(), 42)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty dashboard, got %d items", len(items))
	}
}

func TestSearchSurfacesUpstreamFailure(t *testing.T) {
	gateway := &fakeGateway{geoErr: weather.ErrUpstreamUnavailable}
	svc := newServiceForTest(newFakeLocationStore(), gateway, 5)

	_, err := svc.Search(context.Background(), "London", 5)
	if !errors.Is(err, weather.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newServiceForTest(newFakeLocationStore(), &fakeGateway{}, 5)

	if _, err := svc.Search(context.Background(), "   ", 5); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchThenAddRoundTrip(t *testing.T) {
	gateway := &fakeGateway{places: []weather.Place{
		{Name: "Berlin", CountryCode: "DE", Lat: 52.5200066, Lon: 13.404954},
	}}
	store := newFakeLocationStore()
	svc := newServiceForTest(store, gateway, 5)

	ctx := context.Background()
	places, err := svc.Search(ctx, "Berlin", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("expected one candidate, got %d", len(places))
	}

	saved, err := svc.Add(ctx, 1, AddInput{Name: places[0].Name, Latitude: places[0].Lat, Longitude: places[0].Lon})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if saved.Latitude != 52.52 || saved.Longitude != 13.405 {
		t.Fatalf("coordinates not rounded on round trip: %+v", saved)
	}

	items, err := svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(items) != 1 || items[0].Location.Name != "Berlin" {
		t.Fatalf("unexpected dashboard: %+v", items)
	}
}
