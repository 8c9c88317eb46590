package main

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

	"github.com/invoicegen/platform/internal/ai/gemini"
	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/cache"
	"github.com/invoicegen/platform/internal/config"
	"github.com/invoicegen/platform/internal/database"
	"github.com/invoicegen/platform/internal/domain"
	"github.com/invoicegen/platform/internal/domain/assistant"
	"github.com/invoicegen/platform/internal/domain/users"
	"github.com/invoicegen/platform/internal/httpapi"
	"github.com/invoicegen/platform/internal/jobs"
	"github.com/invoicegen/platform/internal/logger"
	"github.com/invoicegen/platform/internal/metrics"
	"github.com/invoicegen/platform/internal/ratelimit"
	"github.com/invoicegen/platform/internal/server"
	"github.com/invoicegen/platform/internal/storage/memory"
	pgstorage "github.com/invoicegen/platform/internal/storage/postgres"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logr := logger.New(cfg.Env)

	baseCtx := context.Background()

	var db *database.DB
	if cfg.DataBackend == "postgres" {
		db, err = database.Connect(baseCtx, database.Options{
			Driver:          cfg.DatabaseDriver,
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
			Logger:          logr,
		})
		if err != nil {
			logr.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logr.Error("error closing database", "err", cerr)
			}
		}()

		migrator := database.NewSQLMigrator(db.DB.DB, database.MigrationsFS(), database.MigrationsDir, logr)
		if err := db.RunMigrations(baseCtx, migrator); err != nil {
			logr.Error("database migrations failed", "err", err)
			os.Exit(1)
		}
	}

	m := metrics.New()

	insightsCache, closeCache := buildCache(baseCtx, cfg, logr)
	defer closeCache()

	generator, closeGenerator := buildGenerator(baseCtx, cfg, logr, m)
	defer closeGenerator()

	domainContainer, err := buildDomainContainer(cfg, logr, db, domain.Options{
		Generator: generator,
		Cache:     insightsCache,
		CacheTTL:  cfg.InsightsCacheTTL,
		Logger:    logr,
	})
	if err != nil {
		logr.Error("failed to init domain container", "err", err)
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	userLookup := auth.UserLookupFunc(func(ctx context.Context, id string) (bool, error) {
		_, err := domainContainer.Users.Get(ctx, id)
		if errors.Is(err, users.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})

	authLimiter := ratelimit.New(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, ratelimit.ClientIP, logr)
	aiLimiter := ratelimit.New(cfg.AIRateLimitRPS, cfg.AIRateLimitBurst, ratelimit.PreferUser(func(r *http.Request) string {
		return auth.UserID(r.Context())
	}), logr)

	srv := server.New(cfg, logr, m)

	httpapi.Register(srv.Router(), httpapi.Dependencies{
		Logger:      logr,
		Domain:      domainContainer,
		Issuer:      issuer,
		Auth:        auth.NewMiddleware(issuer, userLookup, logr),
		AuthLimiter: authLimiter,
		AILimiter:   aiLimiter,
		Version:     version,
	})

	scheduler := jobs.NewScheduler(logr)
	if cfg.OverdueSweepSchedule != "" {
		if err := scheduler.AddOverdueSweep(cfg.OverdueSweepSchedule, domainContainer.Invoices, m); err != nil {
			logr.Error("failed to schedule overdue sweep", "err", err)
			os.Exit(1)
		}
	}
	scheduler.Start()

	stopCleanup := make(chan struct{})
	go cleanupLimiters(stopCleanup, authLimiter, aiLimiter)

	go func() {
		if err := srv.Run(); err != nil {
			logr.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", "err", err)
		os.Exit(1)
	}
}

func buildDomainContainer(cfg config.Config, logr *slog.Logger, db *database.DB, opts domain.Options) (domain.Container, error) {
	switch cfg.DataBackend {
	case "memory":
		logr.Info("using in-memory repositories (DATA_BACKEND=memory)")
		opts.UserRepo = memory.NewUserRepository()
		opts.InvoiceRepo = memory.NewInvoiceRepository()
	case "postgres":
		if db == nil {
			return domain.Container{}, fmt.Errorf("postgres backend requires database connection")
		}
		logr.Info("using postgres repositories (DATA_BACKEND=postgres)")
		opts.UserRepo = pgstorage.NewUserRepository(db.DB)
		opts.InvoiceRepo = pgstorage.NewInvoiceRepository(db.DB)
	default:
		return domain.Container{}, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
	return domain.New(opts), nil
}

// buildCache prefers Redis when configured and falls back to an in-process cache.
func buildCache(ctx context.Context, cfg config.Config, logr *slog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), func() {}
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, "invoicegen:")
	if err != nil {
		logr.Warn("redis unavailable; using in-memory cache", "err", err)
		return cache.NewMemory(), func() {}
	}
	logr.Info("using redis cache")
	return rc, func() {
		if err := rc.Close(); err != nil {
			logr.Error("error closing redis", "err", err)
		}
	}
}

// buildGenerator returns nil when AI is not configured; assistant endpoints then answer 503.
func buildGenerator(ctx context.Context, cfg config.Config, logr *slog.Logger, m *metrics.Metrics) (assistant.Generator, func()) {
	if !cfg.AIEnabled() {
		logr.Info("AI features disabled (GEMINI_PROJECT not set)")
		return nil, func() {}
	}
	g, err := gemini.New(ctx, gemini.Options{
		Project:  cfg.GeminiProject,
		Location: cfg.GeminiLocation,
		Model:    cfg.GeminiModel,
		Timeout:  cfg.AITimeout,
		Logger:   logr,
	})
	if err != nil {
		logr.Error("failed to init gemini; AI features disabled", "err", err)
		return nil, func() {}
	}
	logr.Info("AI features enabled", "model", cfg.GeminiModel, "location", cfg.GeminiLocation)

	instrumented := assistant.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		start := time.Now()
		out, err := g.Generate(ctx, prompt)
		m.ObserveGeneration(cfg.GeminiModel, time.Since(start), err)
		return out, err
	})
	return instrumented, func() {
		if err := g.Close(); err != nil {
			logr.Error("error closing gemini client", "err", err)
		}
	}
}

func cleanupLimiters(stop <-chan struct{}, limiters ...*ratelimit.Limiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, l := range limiters {
				l.Cleanup(30 * time.Minute)
			}
		case <-stop:
			return
		}
	}
}
