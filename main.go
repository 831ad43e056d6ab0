package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"reservo/config"
	"reservo/cron"
	"reservo/database"
	bookingRepo "reservo/database/repository/booking"
	"reservo/handlers"
	"reservo/middleware"
	"reservo/routes"
	"reservo/services/booking"
	"reservo/services/notification"
	"reservo/services/realtime"
	"reservo/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("main: failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := database.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to MongoDB: %v", err)
	}

	repo, err := bookingRepo.NewMongoBookingRepo(mongoClient, cfg.DatabaseName)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize booking repository: %v", err)
	}

	deltaRedis, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDeltaDB)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to Redis: %v", err)
	}

	// Real-time fan-out over the durable delta history.
	deltaStore := realtime.NewRedisDeltaStore(deltaRedis)
	hub := realtime.NewHub(deltaStore, repo, logger)

	// Core reservation engine.
	ledger := booking.NewLedger(logger)
	ledger.SetObserver(hub)
	detector := booking.NewConflictDetector(ledger, cfg.MaxAlternatives, cfg.LookaheadDays)
	governor := booking.NewGovernor(booking.GovernorConfig{
		RateLimit:  cfg.RateLimitPerWindow,
		RateWindow: cfg.RateLimitWindow,
	}, ledger, logger)
	expander := booking.NewSeriesExpander(ledger, 3, logger)
	providers := booking.NewMemoryProviderDirectory()

	var payments booking.PaymentAuthorizer
	if cfg.StripeKey != "" {
		payments = booking.NewStripeAuthorizer(cfg.StripeKey, logger)
	} else {
		logger.Warn("no Stripe key configured, auto-approving payments")
		payments = booking.AutoApproveAuthorizer{}
	}

	notifier := notification.NewAMQPDispatcher(cfg.AMQPURL, logger)

	queueOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
	retryScheduler := cron.NewPaymentRetryScheduler(queueOpts, logger)
	defer func() { _ = retryScheduler.Close() }()

	orchestrator := &booking.Orchestrator{
		Ledger:    ledger,
		Detector:  detector,
		Governor:  governor,
		Expander:  expander,
		Providers: providers,
		Payments:  payments,
		Repo:      repo,
		Events:    hub,
		Retries:   retryScheduler,
		Notifier:  notifier,
		Logger:    logger,
		Config: booking.OrchestratorConfig{
			PaymentTimeout:    cfg.PaymentTimeout,
			MaxPaymentRetries: cfg.PaymentMaxRetries,
			RetryBackoff:      cfg.PaymentRetryDelay,
		},
	}

	worker := cron.NewRetryWorker(queueOpts, orchestrator, logger)
	workerErrs := worker.Start()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	health := utils.NewHealthMonitor([]*redis.Client{deltaRedis}, mongoClient)
	health.Start(monitorCtx)

	// Create the Gin router.
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler(logger))
	router.Use(gin.Logger())
	router.Use(middleware.RateLimit(cfg.MaxRequestsPerMin, logger))

	routes.RegisterRoutes(router, &routes.Handlers{
		Booking:  handlers.NewBookingHandler(orchestrator, logger),
		Provider: handlers.NewProviderHandler(providers, logger),
		WS:       realtime.NewWSHandler(hub, logger),
		Health:   health,
	})

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.AppPort,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Sugar().Info("main: server is shutting down...")
	case err := <-workerErrs:
		logger.Sugar().Errorf("main: retry worker stopped: %v", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: failed to disconnect MongoDB: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
