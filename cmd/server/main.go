package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rohits-web03/opsdash/internal/api"
	"github.com/rohits-web03/opsdash/internal/api/handlers"
	"github.com/rohits-web03/opsdash/internal/api/services"
	"github.com/rohits-web03/opsdash/internal/attachments"
	"github.com/rohits-web03/opsdash/internal/config"
	"github.com/rohits-web03/opsdash/internal/logger"
	"github.com/rohits-web03/opsdash/internal/models"
	"github.com/rohits-web03/opsdash/internal/repositories"
)

// @title opsdash API
// @version 1.0
// @description Operations dashboard: staff, projects, tasks with attachments, contracts, budget and backups.
// @BasePath /
func main() {
	cfg := config.Load()
	log := logger.New(cfg.Environment)
	os.Exit(finish(log, run(cfg, log)))
}

// finish logs err, flushes log and returns the process exit code.
func finish(log *logger.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped with error", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx := context.Background()

	db, err := repositories.Connect(cfg.DB_URL, !cfg.IsProduction())
	if err != nil {
		return err
	}

	backend, err := attachments.NewBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	store := attachments.NewStore(backend, attachments.Options{
		MaxFileSize:      cfg.Storage.MaxFileSize,
		AllowedMimeTypes: cfg.Storage.AllowedMimeTypes,
	}, log)

	rdb, err := repositories.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		locks attachments.Locker = attachments.NewKeyedMutex()
		cache services.SummaryCache
	)
	if rdb != nil {
		defer rdb.Close()
		locks = newRedisLocker(rdb, cfg.LockTTL, log)
		cache = services.NewRedisSummaryCache(rdb, cfg.DashboardCacheTTL)
		log.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var (
		staff     = repositories.NewRepository[models.Staff](db)
		projects  = repositories.NewRepository[models.Project](db, "Manager")
		contracts = repositories.NewRepository[models.Contract](db, "Project")
		backups   = repositories.NewRepository[models.CloudBackup](db)
		budget    = repositories.NewBudgetRepository(db)
		tasks     = repositories.NewTaskRepository(db)
	)

	h := handlers.New(handlers.Deps{
		Staff:       staff,
		Projects:    projects,
		Contracts:   contracts,
		Budget:      budget,
		Backups:     backups,
		Tasks:       services.NewTaskService(tasks, staff, projects, store, locks, log),
		Dashboard:   services.NewDashboardService(staff, projects, tasks, contracts, budget, backups, cache, log),
		MaxFileSize: store.MaxFileSize(),
		Log:         log,
	})

	router := api.SetupRouter(h, api.RouterOptions{
		Cors: cfg.CorsConfig,
		Log:  log,
		Health: func(ctx context.Context) error {
			return repositories.Ping(ctx, db)
		},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
		// multipart uploads can carry several files
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting opsdash server on port: %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on port %s: %w", cfg.Port, err)
	case <-quit:
	}

	log.Infof("Quitting signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Infof("Server stopped gracefully")
	return nil
}

func newRedisLocker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *attachments.RedisLocker {
	locker := attachments.NewRedisLocker(rdb, ttl)
	locker.OnLost(func(key string) {
		log.Warn("task lock expired before release", zap.String("task_id", key))
	})
	return locker
}
