package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/huddlehq/huddle/pkg/api"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/communities"
	"github.com/huddlehq/huddle/pkg/config"
	"github.com/huddlehq/huddle/pkg/middleware"
	"github.com/huddlehq/huddle/pkg/observability"
	"github.com/huddlehq/huddle/pkg/projects"
	"github.com/huddlehq/huddle/pkg/rbac"
	"github.com/huddlehq/huddle/pkg/storage/postgres"
	"github.com/huddlehq/huddle/pkg/tasks"
	"github.com/huddlehq/huddle/pkg/workers"
)

const (
	guardCacheSize  = 4096
	dbStatsInterval = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)

	db, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	migrations := postgres.Combine(auth.Migrations(), communities.Migrations(), projects.Migrations(), tasks.Migrations())
	if err := postgres.RunMigrations(db, migrations); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	communitySvc := communities.Service(communities.NewPostgresService(db, cfg.Server.BaseURL))
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		cache, err := communities.NewRedisCache(communitySvc, cfg.Redis.URL, cfg.Redis.Password)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		cache.InstrumentWith(communities.CacheMetrics{
			CommunityHits:   metrics.CacheHitsTotal.WithLabelValues("community"),
			CommunityMisses: metrics.CacheMissesTotal.WithLabelValues("community"),
			RoleHits:        metrics.CacheHitsTotal.WithLabelValues("member_role"),
			RoleMisses:      metrics.CacheMissesTotal.WithLabelValues("member_role"),
		})
		communitySvc = cache
		redisClient = cache.Client()
		logger.WithField("addr", cfg.Redis.URL).Info("community cache enabled")
	}

	guard := rbac.NewGuard(communitySvc, guardCacheSize, rbac.DefaultCacheTTL)
	projectSvc := projects.NewPostgresService(db, guard)
	taskSvc := tasks.NewPostgresService(db, guard)
	authStore := auth.NewPostgresStore(db)

	server := api.NewServer(api.ServerOptions{
		Communities: communitySvc,
		Projects:    projectSvc,
		Tasks:       taskSvc,
		Guard:       guard,
		Auth:        middleware.NewAuthMiddleware(authStore),
		Logger:      logger,
		Metrics:     metrics,
	})

	workerLogger := logrus.New()
	workerLogger.SetFormatter(&logrus.JSONFormatter{})
	cleanup, err := workers.NewInviteCleanupWorker(communitySvc, metrics.InvitesExpiredTotal, workerLogger, cfg.Invites.CleanupSchedule)
	if err != nil {
		logger.WithError(err).Error("failed to build invite cleanup worker")
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(cfg, registry, db, redisClient),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		cleanup.Start()
		<-ctx.Done()
		cleanup.Stop()
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				metrics.SetDBStats(db.Stats())
			}
		}
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown error")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func healthMux(cfg *config.Config, registry *prometheus.Registry, db *sql.DB, redisClient *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()

	health := observability.NewHealthHandler(cfg.Postgres.Timeout)
	health.Register("postgres", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if redisClient != nil {
		health.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	mux.Handle("/health", health)

	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}
	return mux
}
