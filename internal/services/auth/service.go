package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	pgrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/postgres"
)

const (
	MinSessionTTL = time.Minute
	loginMinLen   = 3
	loginMaxLen   = 25
)

var loginPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

type UserStore interface {
	FindByLogin(ctx context.Context, login string) (pgrepo.UserRecord, error)
	FindByID(ctx context.Context, id int64) (pgrepo.UserRecord, error)
	Create(ctx context.Context, login, passwordHash string) (pgrepo.UserRecord, error)
}

type SessionStore interface {
	Create(ctx context.Context, token uuid.UUID, userID int64, expiresAt time.Time) error
	FindValidUser(ctx context.Context, token uuid.UUID, now time.Time) (int64, bool, error)
	Delete(ctx context.Context, token uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type LoginLimiter interface {
	AllowLogin(ctx context.Context, login string) (int64, bool, error)
	ResetLogin(ctx context.Context, login string) error
}

type Service struct {
	users      UserStore
	sessions   SessionStore
	limiter    LoginLimiter
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(users UserStore, sessions SessionStore, sessionTTL time.Duration) *Service {
	if sessionTTL < MinSessionTTL {
		sessionTTL = MinSessionTTL
	}

	return &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// AttachLoginLimiter enables login-attempt throttling. Without it every
// attempt is allowed.
func (s *Service) AttachLoginLimiter(limiter LoginLimiter) {
	s.limiter = limiter
}

func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Register creates a user with a normalized login and a bcrypt password
// hash, then opens a first session for it.
func (s *Service) Register(ctx context.Context, login, password, confirmPassword string) (AuthResult, error) {
	normalized, err := normalizeLogin(login)
	if err != nil {
		return AuthResult{}, err
	}

	password = strings.TrimSpace(password)
	if password == "" {
		return AuthResult{}, fmt.Errorf("password cannot be empty: %w", ErrValidation)
	}
	if password != strings.TrimSpace(confirmPassword) {
		return AuthResult{}, fmt.Errorf("passwords do not match: %w", ErrValidation)
	}

	if _, err := s.users.FindByLogin(ctx, normalized); err == nil {
		return AuthResult{}, ErrLoginTaken
	} else if !errors.Is(err, pgrepo.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("check login availability: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, normalized, string(hash))
	if err != nil {
		if errors.Is(err, pgrepo.ErrLoginTaken) {
			return AuthResult{}, ErrLoginTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	session, err := s.Issue(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		Session: session,
		Me:      Me{ID: user.ID, Login: user.Login},
	}, nil
}

// Login verifies credentials and opens a new session. Unknown logins and
// wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, login, password string) (AuthResult, error) {
	normalized, err := normalizeLogin(login)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.AllowLogin(ctx, normalized)
		if err != nil {
			return AuthResult{}, fmt.Errorf("check login rate: %w", err)
		}
		if !allowed {
			return AuthResult{}, &RateLimitError{RetryAfterSec: retryAfter}
		}
	}

	user, err := s.users.FindByLogin(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user by login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	session, err := s.Issue(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	if s.limiter != nil {
		_ = s.limiter.ResetLogin(ctx, normalized)
	}

	return AuthResult{
		Session: session,
		Me:      Me{ID: user.ID, Login: user.Login},
	}, nil
}

// Issue opens a session with expiry now+TTL. A token collision is
// vanishingly unlikely; when it happens the store refuses the insert and the
// error propagates instead of silently replacing the existing row.
func (s *Service) Issue(ctx context.Context, userID int64) (Session, error) {
	if userID <= 0 {
		return Session{}, fmt.Errorf("invalid user id: %w", ErrValidation)
	}

	token, err := NewSessionToken()
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session.Token, session.UserID, session.ExpiresAt); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// Resolve maps a raw cookie value to its owning user. Malformed values,
// unknown tokens and expired sessions all come back as not found.
func (s *Service) Resolve(ctx context.Context, rawToken string) (Resolution, error) {
	token, ok := ParseSessionToken(rawToken)
	if !ok {
		return Resolution{}, nil
	}

	userID, found, err := s.sessions.FindValidUser(ctx, token, s.now())
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve session: %w", err)
	}
	if !found {
		return Resolution{}, nil
	}

	return Resolution{UserID: userID, Found: true}, nil
}

// Me returns the profile view for a resolved user id.
func (s *Service) Me(ctx context.Context, userID int64) (Me, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return Me{}, fmt.Errorf("find user by id: %w", err)
	}
	return Me{ID: user.ID, Login: user.Login}, nil
}

// Logout revokes the session behind the raw cookie value. Malformed and
// unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token, ok := ParseSessionToken(rawToken)
	if !ok {
		return nil
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SweepExpired removes every session that has passed its expiry and returns
// the removed count.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return count, nil
}

func normalizeLogin(login string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(login))
	if len(normalized) < loginMinLen || len(normalized) > loginMaxLen {
		return "", fmt.Errorf("login must be between %d and %d characters: %w", loginMinLen, loginMaxLen, ErrValidation)
	}
	if !loginPattern.MatchString(normalized) {
		return "", fmt.Errorf("login can contain only letters, numbers, dots, underscores and hyphens: %w", ErrValidation)
	}
	return normalized, nil
}
