package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyeonwoo-dev/subpay/internal/application/services"
	"github.com/hyeonwoo-dev/subpay/internal/config"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/gateway"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence"
	"github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence/postgres"
	redisstore "github.com/hyeonwoo-dev/subpay/internal/infrastructure/persistence/redis"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest/handlers"
	"github.com/hyeonwoo-dev/subpay/internal/interfaces/rest/middleware"
	"github.com/hyeonwoo-dev/subpay/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting subpay service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	paymentRepo := postgres.NewPaymentRepository(db)
	jobRepo := postgres.NewBillingJobRepository(db)
	idempotencyStore := redisstore.NewIdempotencyStore(redisClient)

	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)

	guard := services.NewIdempotencyGuard(idempotencyStore, cfg.Idempotency.TTL)
	executor := services.NewTxExecutor(cfg.Executor.MaxAttempts, cfg.Executor.BaseDelay, logger)
	compensator := services.NewCompensationHandler(paymentRepo, gatewayClient, logger)

	checkoutService := services.NewCheckoutService(paymentRepo, logger)
	confirmService := services.NewConfirmService(paymentRepo, gatewayClient, guard, executor, compensator, logger)
	cancelService := services.NewCancelService(paymentRepo, gatewayClient, executor, compensator, logger)
	issueKeyService := services.NewIssueBillingKeyService(paymentRepo, gatewayClient, executor, compensator, logger)
	chargeService := services.NewAutoChargeService(paymentRepo, gatewayClient, guard, executor, compensator, logger)
	scheduleService := services.NewScheduleService(paymentRepo, jobRepo, logger)
	queryService := services.NewQueryService(paymentRepo)

	h := handlers.NewHandler(
		checkoutService,
		confirmService,
		cancelService,
		issueKeyService,
		chargeService,
		scheduleService,
		queryService,
		logger,
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	h.RegisterRoutes(router)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	chargeWorker := worker.NewAutoChargeWorker(
		jobRepo,
		chargeService,
		guard,
		worker.NewRetryPolicy(cfg.ChargeRetry),
		worker.NewRetryPolicy(cfg.RenewalRetry),
		cfg.Worker.ChargeInterval,
		cfg.Worker.BatchSize,
		logger,
	)

	recoveryWorker := worker.NewCancelRecoveryWorker(
		paymentRepo,
		cancelService,
		cfg.Worker.RecoveryInterval,
		cfg.Worker.StaleCancelAfter,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go chargeWorker.Start(workerCtx)
	go recoveryWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
