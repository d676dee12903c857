package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"medtransit/internal/app"
	"medtransit/internal/config"
	"medtransit/internal/handler"
	"medtransit/internal/metrics"
	internalRedis "medtransit/internal/redis"
	"medtransit/internal/repository/postgres"
	"medtransit/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	metrics.Register()

	// Wire dependencies.
	server, dispatcher, confirmationService := wireServer(db, redisClient, nrApp, cfg)

	dispatcher.Start(cfg.Engine.DeliveryWorkers)
	log.Printf("Notification dispatcher started: workers=%d queue=%d",
		cfg.Engine.DeliveryWorkers, cfg.Engine.DeliveryQueueSize)

	// Background sweeper moves confirmation requests past their deadline
	// to expired.
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go runExpirySweeper(sweepCtx, confirmationService, cfg.Engine.ExpirySweepInterval)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	// Stop background work after the HTTP surface is drained so in-flight
	// requests can still enqueue deliveries.
	stopSweeper()
	dispatcher.Stop()

	log.Println("Server exited")
}

// runExpirySweeper runs ExpireStale on a fixed interval until ctx is
// cancelled.
func runExpirySweeper(ctx context.Context, confirmations *service.ConfirmationService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := confirmations.ExpireStale(ctx)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("expiry sweep: expired %d confirmation request(s)", count)
			}
		}
	}
}

// wireServer wires all dependencies and returns the HTTP server plus the
// components main has to start and stop itself.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.Dispatcher, *service.ConfirmationService) {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	tripRepo := postgres.NewTripRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	confirmationRepo := postgres.NewConfirmationRepository(db)
	jobRepo := postgres.NewNotificationJobRepository(db)
	suppressionRepo := postgres.NewSuppressionRepository(db)
	rateRepo := postgres.NewRateTierRepository(db)
	payoutRepo := postgres.NewPayoutRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	facilityRepo := postgres.NewFacilityRepository(db)

	// Initialize services.
	gateway := service.NewMockGateway()
	suppressionService := service.NewSuppressionService(suppressionRepo, cacheStore)
	dispatcher := service.NewDispatcher(
		jobRepo, driverRepo, facilityRepo, suppressionService, gateway,
		cfg.Engine.DeliveryQueueSize, cfg.Engine.DeliveryTimeout,
	)
	payoutService := service.NewPayoutService(rateRepo, payoutRepo, driverRepo)
	lifecycleService := service.NewTripLifecycleService(
		db, tripRepo, historyRepo, driverRepo, lockStore,
		dispatcher, payoutService, cfg.Engine.TripLockTTL,
	)
	resolver := service.NewReplyResolver(confirmationRepo, tripRepo)
	confirmationService := service.NewConfirmationService(
		confirmationRepo, tripRepo, historyRepo, resolver,
		suppressionService, dispatcher, gateway, lockStore,
		cfg.Engine.ConfirmationDeadlineOffset, cfg.Engine.TripLockTTL,
	)

	// Initialize handlers.
	tripHandler := handler.NewTripHandler(lifecycleService, dispatcher, payoutService)
	confirmationHandler := handler.NewConfirmationHandler(confirmationService)
	suppressionHandler := handler.NewSuppressionHandler(suppressionService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:         tripHandler,
		ConfirmationHandler: confirmationHandler,
		SuppressionHandler:  suppressionHandler,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, dispatcher, confirmationService
}
