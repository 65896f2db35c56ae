package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pgrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/postgres"
	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	"github.com/LuzhinLoop/weather-viewer/internal/transport/http/handlers"
)

type noUserStore struct{}

func (noUserStore) FindByLogin(context.Context, string) (pgrepo.UserRecord, error) {
	return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
}

func (noUserStore) FindByID(context.Context, int64) (pgrepo.UserRecord, error) {
	return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
}

func (noUserStore) Create(context.Context, string, string) (pgrepo.UserRecord, error) {
	return pgrepo.UserRecord{}, pgrepo.ErrInvalidPayload
}

type memSessionStore struct {
	rows map[uuid.UUID]memSessionRow
}

type memSessionRow struct {
	userID    int64
	expiresAt time.Time
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{rows: make(map[uuid.UUID]memSessionRow)}
}

func (s *memSessionStore) Create(_ context.Context, token uuid.UUID, userID int64, expiresAt time.Time) error {
	s.rows[token] = memSessionRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *memSessionStore) FindValidUser(_ context.Context, token uuid.UUID, now time.Time) (int64, bool, error) {
	row, ok := s.rows[token]
	if !ok || !row.expiresAt.After(now) {
		return 0, false, nil
	}
	return row.userID, true, nil
}

func (s *memSessionStore) Delete(_ context.Context, token uuid.UUID) error {
	delete(s.rows, token)
	return nil
}

func (s *memSessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var removed int64
	for token, row := range s.rows {
		if !row.expiresAt.After(now) {
			delete(s.rows, token)
			removed++
		}
	}
	return removed, nil
}

func newGateForTest(t *testing.T) (func(http.Handler) http.Handler, *authsvc.Service) {
	t.Helper()

	svc := authsvc.NewService(noUserStore{}, newMemSessionStore(), time.Hour)
	gate := SessionGate(svc, GateConfig{
		PublicPrefixes: []string{"/auth/", "/healthz"},
		LoginPath:      "/auth/login",
	}, zap.NewNop())
	return gate, svc
}

func TestSessionGatePassesPublicPaths(t *testing.T) {
	gate, _ := newGateForTest(t)

	rr := httptest.NewRecorder()
	gate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestSessionGatePublicPrefixStopsAtSegmentBoundary(t *testing.T) {
	gate, _ := newGateForTest(t)

	cases := []struct {
		path   string
		public bool
	}{
		{"/healthz", true},
		{"/healthz/live", true},
		{"/healthzanything", false},
		{"/auth", true},
		{"/auth/login", true},
		{"/authz", false},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		gate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))

		if tc.public && rr.Code != http.StatusNoContent {
			t.Fatalf("%s: expected public pass-through, got %d", tc.path, rr.Code)
		}
		if !tc.public && rr.Code != http.StatusFound {
			t.Fatalf("%s: expected login redirect, got %d", tc.path, rr.Code)
		}
	}
}

func TestSessionGateRedirectsAnonymousWithReturnURL(t *testing.T) {
	gate, _ := newGateForTest(t)

	rr := httptest.NewRecorder()
	gate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for anonymous request")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard?tab=all", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusFound)
	}

	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect target: %v", err)
	}
	if location.Path != "/auth/login" {
		t.Fatalf("unexpected redirect path: %q", location.Path)
	}
	if got := location.Query().Get("redirect"); got != "/dashboard?tab=all" {
		t.Fatalf("original url not preserved: %q", got)
	}
}

func TestSessionGateRedirectsOnMalformedCookie(t *testing.T) {
	gate, _ := newGateForTest(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: "not-a-token"})

	rr := httptest.NewRecorder()
	gate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run for malformed cookie")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusFound)
	}
}

func TestSessionGateAdmitsLiveSession(t *testing.T) {
	gate, svc := newGateForTest(t)

	session, err := svc.Issue(context.Background(), 9)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: session.Token.String()})

	rr := httptest.NewRecorder()
	gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok || identity.UserID != 9 {
			t.Fatalf("identity missing or wrong: %+v ok=%v", identity, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}
