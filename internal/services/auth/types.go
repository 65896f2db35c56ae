package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginTaken         = errors.New("user with this username already exists")
)

// RateLimitError reports a throttled login attempt together with the
// retry-after hint in seconds.
type RateLimitError struct {
	RetryAfterSec int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %ds", e.RetryAfterSec)
}

// Session is an opaque-token credential. Its existence in the store plus a
// future ExpiresAt is the sole authorization proof.
type Session struct {
	Token     uuid.UUID
	UserID    int64
	ExpiresAt time.Time
}

type Me struct {
	ID    int64
	Login string
}

type AuthResult struct {
	Session Session
	Me      Me
}

// Resolution is the two-branch outcome of resolving a session token: either
// Found with the owning user id, or not-found-or-expired. The two negative
// cases are deliberately indistinguishable.
type Resolution struct {
	UserID int64
	Found  bool
}
