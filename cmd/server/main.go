package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/activity"
	"github.com/makkenzo/license-key-service/internal/domain/license"
	"github.com/makkenzo/license-key-service/internal/handler"
	"github.com/makkenzo/license-key-service/internal/service"
	"github.com/makkenzo/license-key-service/internal/storage/memstorage"
	"github.com/makkenzo/license-key-service/internal/storage/postgres"
	"github.com/makkenzo/license-key-service/internal/storage/redis"
	"github.com/makkenzo/license-key-service/internal/worker"
	"github.com/makkenzo/license-key-service/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Session.Secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			sugarLogger.Fatalf("Failed to generate session secret: %v", err)
		}
		cfg.Session.Secret = hex.EncodeToString(secret)
		sugarLogger.Warn("session.secret is not set; generated a random one, sessions will not survive a restart")
	}

	var (
		licenseRepo  license.Repository
		activityRepo activity.Repository
		dependencies []handler.Dependency
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		sugarLogger.Warn("Using in-memory storage; keys will be lost on shutdown")
		licenseRepo = memstorage.NewLicenseRepository()
		activityRepo = memstorage.NewActivityRepository()
	default:
		dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbPool.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(appCtx, dbPool, appLogger); err != nil {
				sugarLogger.Fatalf("Failed to apply database schema: %v", err)
			}
		}

		licenseRepo = postgres.NewLicenseRepository(dbPool, appLogger)
		activityRepo = postgres.NewActivityRepository(dbPool, appLogger)
		dependencies = append(dependencies, handler.Dependency{Name: "database", Pinger: dbPool})
	}

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	dependencies = append(dependencies, handler.Dependency{
		Name:   "redis",
		Pinger: handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	})

	userRepo, err := memstorage.NewUserRepository(cfg.Admin)
	if err != nil {
		sugarLogger.Fatalf("Failed to set up admin account: %v", err)
	}
	sessionStore := redis.NewSessionStore(redisClient, appLogger)

	activityService := service.NewActivityService(activityRepo, appLogger)
	licenseService := service.NewLicenseService(licenseRepo, activityService, cfg.License, appLogger)
	validationService := service.NewValidationService(licenseRepo, appLogger)
	authService, err := service.NewAuthService(userRepo, sessionStore, activityService, cfg.Session, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize auth service: %v", err)
	}

	router, err := handler.NewRouter(handler.RouterDeps{
		Licenses:   licenseService,
		Validation: validationService,
		Auth:       authService,
		Health:     handler.NewHealthHandler(licenseService, appLogger, dependencies...),
		Session:    cfg.Session,
		CORS:       cfg.CORS,
		Logger:     appLogger,
	})
	if err != nil {
		sugarLogger.Fatalf("Failed to build router: %v", err)
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	if cfg.Worker.Enabled {
		g.Go(func() error {
			if err := worker.RunWorkers(groupCtx, cfg, licenseService, appLogger); err != nil {
				sugarLogger.Error("Asynq worker failed", zap.Error(err))
				return fmt.Errorf("asynq worker error: %w", err)
			}
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		})
	} else {
		sugarLogger.Info("Background worker disabled; stats reconcile is available on demand only.")
	}

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	flushed := make(chan struct{})
	go func() {
		activityService.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
		sugarLogger.Info("Pending activity entries flushed.")
	case <-time.After(5 * time.Second):
		sugarLogger.Warn("Timed out waiting for pending activity entries.")
	}

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}
