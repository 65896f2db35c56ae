package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LuzhinLoop/weather-viewer/internal/config"
	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	locsvc "github.com/LuzhinLoop/weather-viewer/internal/services/locations"
	"github.com/LuzhinLoop/weather-viewer/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService     *authsvc.Service
	LocationService *locsvc.Service
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	cookies := handlers.SessionCookies{Secure: deps.Config.Auth.SecureCookies}

	authHandler := handlers.NewAuthHandler(deps.AuthService, cookies)
	locationsHandler := handlers.NewLocationsHandler(deps.LocationService)
	healthHandler := handlers.NewHealthHandler()

	gateMW := SessionGate(deps.AuthService, GateConfig{
		PublicPrefixes: deps.Config.Auth.PublicPaths,
		LoginPath:      deps.Config.Auth.LoginPath,
	}, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(gateMW)
		r.Get("/dashboard", locationsHandler.Dashboard)
		r.Get("/locations/search", locationsHandler.Search)
		r.Post("/locations", locationsHandler.Add)
		r.Delete("/locations/{locationID}", locationsHandler.Delete)
	})
}
