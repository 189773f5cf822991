package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kubesage/kubesage-backend/internal/api/rest"
	"github.com/kubesage/kubesage-backend/internal/auth"
	"github.com/kubesage/kubesage-backend/internal/cache"
	"github.com/kubesage/kubesage-backend/internal/cmdexec"
	"github.com/kubesage/kubesage-backend/internal/config"
	"github.com/kubesage/kubesage-backend/internal/pkg/logger"
	"github.com/kubesage/kubesage-backend/internal/pkg/tracing"
	"github.com/kubesage/kubesage-backend/internal/queue"
	"github.com/kubesage/kubesage-backend/internal/repository"
	"github.com/kubesage/kubesage-backend/internal/service"
	"github.com/kubesage/kubesage-backend/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting kubesage backend", "port", cfg.Port, "database_driver", cfg.DatabaseDriver)

	shutdownTracing, err := tracing.Init("kubesage-backend", cfg.TracingEndpoint, cfg.TracingSamplingRate)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing()

	repo, err := repository.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		log.Error("failed to read embedded schema", "error", err)
		os.Exit(1)
	}
	if err := repo.RunMigrations(string(schema)); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	fastTier := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer fastTier.Close()
	taskQueue := queue.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TaskQueueName, log)
	defer taskQueue.Close()

	executor := cmdexec.NewExecutor(time.Duration(cfg.CommandTimeoutSec)*time.Second, log)
	results := cache.NewResultCache(repo, fastTier, time.Duration(cfg.CacheTTLSec)*time.Second, log)

	kubeconfigSvc := service.NewKubeconfigService(repo, executor, cfg, log)
	analysisSvc := service.NewAnalysisService(kubeconfigSvc, results, executor, cfg, log)
	backendSvc := service.NewBackendService(repo, log)

	var validator auth.Validator
	if cfg.AuthMode == "local" {
		validator = auth.NewLocalValidator(cfg.AuthJWTSecret)
		log.Info("using local token validation")
	} else {
		validator = auth.NewRemoteValidator(cfg.UserServiceURL)
		log.Info("using remote token validation", "user_service_url", cfg.UserServiceURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler := service.NewReconciler(repo, taskQueue, cfg.UploadDir,
		time.Duration(cfg.ReconcileIntervalSec)*time.Second,
		time.Duration(cfg.ReconcileBackoffSec)*time.Second,
		log)
	reconciler.Start(ctx)

	handler := rest.NewHandler(kubeconfigSvc, analysisSvc, backendSvc, log)
	router := handler.SetupRoutes(validator)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(corsWrapper.Handler(router), "kubesage-backend"),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec+cfg.CommandTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("server failed", "error", err)
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	cancel()
	reconciler.Stop()
	log.Info("shutdown complete")
}
