package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	"github.com/LuzhinLoop/weather-viewer/internal/transport/http/dto"
	httperrors "github.com/LuzhinLoop/weather-viewer/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
	cookies SessionCookies
	now     func() time.Time
}

func NewAuthHandler(service *authsvc.Service, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{service: service, cookies: cookies, now: time.Now}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	if h.shortCircuitAuthenticated(w, r) {
		return
	}

	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.Register(r.Context(), req.Login, req.Password, req.ConfirmPassword)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeAuthResult(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	if h.shortCircuitAuthenticated(w, r) {
		return
	}

	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.writeAuthResult(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	if token, ok := SessionTokenFromRequest(r); ok {
		if err := h.service.Logout(r.Context(), token); err != nil {
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
			return
		}
	}

	h.cookies.Clear(w)
	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

// shortCircuitAuthenticated answers login and register calls that already
// carry a live session without opening another one.
func (h *AuthHandler) shortCircuitAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	token, ok := SessionTokenFromRequest(r)
	if !ok {
		return false
	}
	res, err := h.service.Resolve(r.Context(), token)
	if err != nil || !res.Found {
		return false
	}
	me, err := h.service.Me(r.Context(), res.UserID)
	if err != nil {
		return false
	}

	httperrors.Write(w, http.StatusOK, dto.AuthResponse{
		Me: dto.AuthMeResponse{ID: me.ID, Login: me.Login},
	})
	return true
}

func (h *AuthHandler) writeAuthResult(w http.ResponseWriter, status int, res authsvc.AuthResult) {
	now := h.now()
	h.cookies.Set(w, res.Session.Token.String(), res.Session.ExpiresAt, now)

	httperrors.Write(w, status, dto.AuthResponse{
		Me:           dto.AuthMeResponse{ID: res.Me.ID, Login: res.Me.Login},
		ExpiresInSec: maxInt64(0, int64(res.Session.ExpiresAt.Sub(now).Seconds())),
	})
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	var rateErr *authsvc.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.FormatInt(rateErr.RetryAfterSec, 10))
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "RATE_LIMITED",
			Message:       "too many login attempts",
			RetryAfterSec: rateErr.RetryAfterSec,
		})
	case errors.Is(err, authsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, authsvc.ErrLoginTaken):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "LOGIN_TAKEN",
			Message: "this login is already taken",
		})
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		writeUnauthorized(w, "INVALID_CREDENTIALS", "invalid username or password")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
