package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"

	"backoffice/internal/domain/payouts"
	"backoffice/internal/domain/reports"
	"backoffice/internal/domain/settlement"
	"backoffice/internal/platform/config"
	"backoffice/internal/platform/db"
	"backoffice/internal/platform/email"
	"backoffice/internal/platform/jobs"
	"backoffice/internal/platform/metrics"
	"backoffice/internal/platform/telegram"
	"backoffice/internal/transport/http/api"
	payoutshandler "backoffice/internal/transport/http/handlers/payouts"
	reportshandler "backoffice/internal/transport/http/handlers/reports"
	"backoffice/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *db.Pool
	Router  http.Handler
	Reports *reports.Service
	Payouts *payouts.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	redis  *redis.Client
	cancel context.CancelFunc
}

// New connects to Postgres (and Redis when configured), applies migrations
// when enabled and starts the job worker. Close releases all of it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	calc, err := cfg.Calculator()
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}

	var cache reports.Cache = reports.NoopCache{}
	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, report cache disabled", "addr", cfg.RedisAddr, "err", err)
			_ = app.redis.Close()
			app.redis = nil
		} else {
			cache = reports.NewRedisCache(app.redis)
		}
	}

	engine := settlement.NewEngine(calc)
	app.Reports = reports.NewService(reports.NewStore(pool), cache, engine, cfg.PeriodMode, cfg.ReportCacheTTL)
	app.Payouts = payouts.NewService(payouts.NewStore(pool), app.Reports, cfg.PeriodMode)

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Jobs = jobs.New(jobs.PGRunStore{DB: pool}, cfg, app.Reports, notifiers...)
	jobCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Jobs.Start(jobCtx)

	app.Router, err = app.routes()
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func buildNotifiers(cfg config.Config) ([]jobs.Notifier, error) {
	var notifiers []jobs.Notifier
	tg, err := telegram.New(cfg)
	if err != nil {
		return nil, err
	}
	if tg != nil {
		notifiers = append(notifiers, tg)
	}
	if mail := email.NewDigestNotifier(cfg); mail != nil {
		notifiers = append(notifiers, mail)
	}
	return notifiers, nil
}

func (a *App) routes() (http.Handler, error) {
	cfg := a.Config
	rateLimit, err := middleware.RateLimit(cfg.RateLimit, nil)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.Actor(cfg.JWTSecret))
	router.Use(middleware.Logger(slog.Default(), a.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if a.redis != nil {
			if err := a.redis.Ping(ctx).Err(); err != nil {
				http.Error(w, "cache not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActorWhen(cfg.JWTSecret))
		r.Use(rateLimit)

		reportsHandler := reportshandler.NewHandler(a.Reports, a.Metrics)
		reportsHandler.RegisterRoutes(r)

		payoutsHandler := payoutshandler.NewHandler(a.Payouts, a.Metrics)
		payoutsHandler.RegisterRoutes(r)

		r.Post("/jobs/digest/run", func(w http.ResponseWriter, r *http.Request) {
			details, err := a.Jobs.RunNow(r.Context(), jobs.JobPeriodDigest, a.Jobs.Digest)
			if err != nil {
				api.FailWithDetails(w, http.StatusBadGateway, "digest_failed", err.Error(), details, middleware.GetRequestID(r.Context()))
				return
			}
			api.Success(w, details, middleware.GetRequestID(r.Context()))
		})
	})

	return router, nil
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	slog.Info("settlement server listening", "addr", cfg.Addr, "periodMode", cfg.PeriodMode, "splitPolicy", cfg.SplitPolicy)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
