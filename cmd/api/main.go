package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadtracker_backend/internal/adapters/storage"
	"leadtracker_backend/internal/events"
	"leadtracker_backend/internal/exports"
	apphttp "leadtracker_backend/internal/http"
	"leadtracker_backend/internal/http/router"
	"leadtracker_backend/internal/leads"
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/notification"
	"leadtracker_backend/internal/notification/relay"
	"leadtracker_backend/internal/notification/sse"
	"leadtracker_backend/internal/scheduler"
	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/db"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"
	"leadtracker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	pipeline, err := domain.LoadPipeline(cfg.GetPipelineFile())
	if err != nil {
		log.Error("failed to load stage pipeline", "error", err, "file", cfg.GetPipelineFile())
		panic("failed to load stage pipeline: " + err.Error())
	}
	log.Info("stage pipeline loaded", "stages", pipeline.Stages())

	m := metrics.New()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	var redisClient *redis.Client
	if cfg.IsRedisEnabled() {
		redisClient, err = scheduler.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize redis client", "error", err)
			panic("failed to initialize redis client: " + err.Error())
		}
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_URL not configured; change events stay on this instance and exports are disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule, err := leads.NewModule(pool, pipeline, eventBus, val, m, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	// Notification module subscribes to domain events and serves the live streams
	hub := sse.New(log)
	hub.SetMetrics(m)
	notificationModule := notification.New(hub, pipeline, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	if redisClient != nil {
		eventRelay := relay.New(redisClient, cfg.GetEventsChannel(), hub, log)
		if err := withRetry(ctx, log, "event relay subscription", 5, 2*time.Second, func() error {
			return eventRelay.Start(ctx)
		}); err != nil {
			log.Error("failed to start event relay", "error", err)
			panic("failed to start event relay: " + err.Error())
		}
		defer eventRelay.Close()
		notificationModule.SetRelay(eventRelay)
	}

	modules := []apphttp.Module{leadsModule, notificationModule}

	if cfg.IsExportEnabled() {
		exportsModule, closeExports := initExports(ctx, cfg, log, redisClient, leadsModule, val, m)
		defer closeExports()
		modules = append(modules, exportsModule)
	}

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		Metrics:  m,
		EventBus: eventBus,
		Modules:  modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		// Streams only end when their subscription closes.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}

	eventBus.Wait()
	log.Info("server stopped")
}

func initExports(ctx context.Context, cfg *config.Config, log *logger.Logger, redisClient *redis.Client, leadsModule *leads.Module, val *validator.Validator, m *metrics.Metrics) (*exports.Module, func()) {
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, storageSvc, "lead-exports", cfg.GetMinioBucketExports())

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize export queue client", "error", err)
		panic("failed to initialize export queue client: " + err.Error())
	}

	store := exports.NewStatusStore(redisClient, cfg.GetExportStatusTTL())
	svc := exports.NewService(store, leadsModule.Service(), storageSvc, cfg.GetMinioBucketExports(), cfg.GetExportMaxRows(), log)
	svc.SetQueue(queue)
	svc.SetMetrics(m)
	log.Info("lead exports enabled", "bucket", cfg.GetMinioBucketExports(), "queue", cfg.GetAsynqQueueName())

	return exports.NewModule(svc, val), func() {
		_ = queue.Close()
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
