package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LuzhinLoop/weather-viewer/internal/config"
	"github.com/LuzhinLoop/weather-viewer/internal/jobs/cleanup"
	pgrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/postgres"
	redrepo "github.com/LuzhinLoop/weather-viewer/internal/repo/redis"
	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	locsvc "github.com/LuzhinLoop/weather-viewer/internal/services/locations"
	ratesvc "github.com/LuzhinLoop/weather-viewer/internal/services/rate"
	"github.com/LuzhinLoop/weather-viewer/internal/services/weather"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	cleanupJob *cleanup.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if err := pgrepo.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			log.Warn("migrations failed, continuing in degraded mode", zap.Error(err))
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	sessionRepo := pgrepo.NewSessionRepo(pool)
	locationRepo := pgrepo.NewLocationRepo(pool)

	authService := authsvc.NewService(userRepo, sessionRepo, cfg.Auth.SessionTTL)
	authService.AttachLoginLimiter(ratesvc.NewLimiter(
		rateRepo,
		cfg.Limits.LoginPerMinute,
		cfg.Limits.LoginPer10Sec,
	))

	weatherClient := weather.NewClient(weather.Config{
		BaseURL:      cfg.Weather.BaseURL,
		APIKey:       cfg.Weather.APIKey,
		Lang:         cfg.Weather.Lang,
		Timeout:      cfg.Weather.Timeout,
		GeocodeLimit: cfg.Weather.GeocodeLimit,
	}, log)

	locationService := locsvc.NewService(pool, locationRepo, weatherClient, cfg.Limits.MaxLocationsPerUser, log)

	RegisterRoutes(r, Dependencies{
		AuthService:     authService,
		LocationService: locationService,
		Logger:          log,
		Config:          cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		cleanupJob: cleanup.New(authService, log),
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RunCleanup sweeps expired sessions once right away and then on every tick
// until the context is cancelled.
func (a *App) RunCleanup(ctx context.Context) error {
	if a.cleanupJob == nil {
		return nil
	}

	interval := a.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 6 * time.Minute
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		a.logger.Error("session cleanup failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				a.logger.Error("session cleanup failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
