package apiapp

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	httperrors "github.com/LuzhinLoop/weather-viewer/internal/transport/http/errors"
	"github.com/LuzhinLoop/weather-viewer/internal/transport/http/handlers"
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

// GateConfig drives the session gate. Requests whose path starts with one of
// PublicPrefixes pass through untouched; everything else needs a live
// session.
type GateConfig struct {
	PublicPrefixes []string
	LoginPath      string
}

// SessionGate resolves the session cookie on every non-public request.
// Resolved requests continue with the identity in context; anonymous ones
// are redirected to the login page with the original URL preserved.
func SessionGate(authService *authsvc.Service, cfg GateConfig, log *zap.Logger) func(http.Handler) http.Handler {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/auth/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, cfg.PublicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			if authService == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			token, ok := handlers.SessionTokenFromRequest(r)
			if ok {
				res, err := authService.Resolve(r.Context(), token)
				if err != nil {
					if log != nil {
						log.Error("session resolution failed", zap.Error(err))
					}
					httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
						Code:    "INTERNAL_ERROR",
						Message: "internal server error",
					})
					return
				}
				if res.Found {
					ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{UserID: res.UserID})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			redirectToLogin(w, r, loginPath)
		})
	}
}

// isPublicPath matches on segment boundaries: "/healthz" admits "/healthz"
// and "/healthz/live" but not "/healthzanything".
func isPublicPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		trimmed := strings.TrimSuffix(prefix, "/")
		if path == trimmed || strings.HasPrefix(path, trimmed+"/") {
			return true
		}
	}
	return false
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, loginPath+"?redirect="+url.QueryEscape(target), http.StatusFound)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
