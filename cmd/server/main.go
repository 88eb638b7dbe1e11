package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rideon/dispatch/internal/cache"
	"github.com/rideon/dispatch/internal/config"
	"github.com/rideon/dispatch/internal/database"
	"github.com/rideon/dispatch/internal/events"
	"github.com/rideon/dispatch/internal/handler"
	"github.com/rideon/dispatch/internal/middleware"
	"github.com/rideon/dispatch/internal/notification"
	"github.com/rideon/dispatch/internal/repository"
	"github.com/rideon/dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// New Relic is optional; everything below tolerates a nil app.
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		} else {
			log.Println("New Relic connected")
		}
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	captainCache := cache.NewCaptainLocationCache(redis.Client)

	// Repositories
	captainRepo := repository.NewCaptainRepository(db.DB)
	rideRepo := repository.NewRideRepository(db.DB)
	offerRepo := repository.NewOfferRepository(db.DB)
	metricsRepo := repository.NewCaptainMetricsRepository(db.DB)
	configRepo := repository.NewConfigRepository(db.DB)
	matchStore := repository.NewMatchStore(db.DB)

	// Outbound collaborators
	var notifier notification.Notifier = notification.NopNotifier{}
	if cfg.NotifyEndpoint != "" {
		notifier = notification.NewPushNotifier(cfg.NotifyEndpoint)
	}
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		log.Printf("Publishing ride events to %s", cfg.KafkaTopic)
	}

	// Services
	locator := service.NewLocatorService(captainRepo, metricsRepo, captainCache)
	offerService := service.NewOfferService(offerRepo, rideRepo, captainRepo, metricsRepo, matchStore, publisher)
	dispatchService := service.NewDispatchService(rideRepo, offerRepo, captainRepo, configRepo,
		matchStore, locator, offerService, notifier, publisher)
	cancellationService := service.NewCancellationService(rideRepo, configRepo, matchStore, notifier, publisher)
	captainService := service.NewCaptainService(captainRepo, metricsRepo, captainCache)
	rideService := service.NewRideService(rideRepo, captainRepo)

	// Handlers
	rideHandler := handler.NewRideHandler(rideService, cancellationService)
	matchingHandler := handler.NewMatchingHandler(dispatchService)
	offerHandler := handler.NewOfferHandler(offerService)
	captainHandler := handler.NewCaptainHandler(captainService, offerService)

	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if nrApp != nil {
		r.Use(middleware.NewRelic(nrApp))
	}

	rateLimiter := middleware.NewRateLimiter(redis.Client, 100, time.Minute)
	r.Use(rateLimiter.Handler)

	idempotency := middleware.NewIdempotency(redis.Client)
	r.Use(idempotency.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		rideHandler.RegisterRoutes(r)
		matchingHandler.RegisterRoutes(r)
		offerHandler.RegisterRoutes(r)
		captainHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST /v1/rides                    - Create ride")
	log.Println("  GET  /v1/rides/{id}               - Get ride")
	log.Println("  POST /v1/rides/{id}/cancel        - Cancel ride")
	log.Println("  POST /v1/matching                 - Run one matching attempt")
	log.Println("  POST /v1/offers/{id}/respond      - Accept or decline offer")
	log.Println("  POST /v1/captains                 - Register captain")
	log.Println("  GET  /v1/captains/{id}            - Get captain")
	log.Println("  POST /v1/captains/{id}/location   - Update location")
	log.Println("  POST /v1/captains/{id}/online     - Go online")
	log.Println("  POST /v1/captains/{id}/offline    - Go offline")
	log.Println("  GET  /v1/captains/{id}/offers     - Pending offers")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
