package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewSessionToken generates a fresh random 128-bit token. The canonical
// textual encoding is the UUID form carried by the session cookie.
func NewSessionToken() (uuid.UUID, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate session token: %w", err)
	}
	return token, nil
}

// ParseSessionToken reports whether value is a well-formed token. Anything
// else is treated as the anonymous case, never as an error.
func ParseSessionToken(value string) (uuid.UUID, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, false
	}
	token, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, false
	}
	return token, true
}
