// Package main provides the entrypoint for the Veil background worker: the
// Pub/Sub call-event subscriber and the push registration sweep.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/database"
	"github.com/veilchat/veilchat/internal/push"
	"github.com/veilchat/veilchat/internal/push/apns"
	"github.com/veilchat/veilchat/internal/push/fcm"
	"github.com/veilchat/veilchat/internal/registry"
	"github.com/veilchat/veilchat/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "veil-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Veil worker")

	// Worker also exposes a health endpoint for the container platform
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// The worker talks straight to Postgres; the Redis cache only pays off
	// on the API's webhook hot path, and skipping it here keeps sweep
	// deletes from having to invalidate per-JID entries one by one.
	registryRepo := registry.NewPostgresRepository(pool)
	registryService := registry.NewService(registryRepo)

	// Push providers and dispatcher, same wiring as the API webhook path
	apnsClient := apns.NewClient(apns.ConfigFromEnv(), log)
	fcmClient := fcm.NewClient(fcm.ConfigFromEnv(), log)

	cfg := worker.ConfigFromEnv()

	pushService := push.NewService(push.ServiceConfig{
		Registry: registryRepo,
		Clients: map[registry.Platform]push.Client{
			registry.PlatformIOS:     apnsClient,
			registry.PlatformAndroid: fcmClient,
		},
		Domain: envOrDefault("XMPP_DOMAIN", "veilchat.im"),
		Logger: log,
	})

	// Registration sweep
	sweepJob := worker.NewSweepJob(worker.SweepJobConfig{
		Interval:  cfg.SweepInterval,
		Retention: cfg.Retention,
		Registry:  registryService,
		Logger:    log,
	})
	go sweepJob.Start(ctx)
	log.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("retention", cfg.Retention).
		Msg("registration sweep started")

	// Call-event subscriber, only when a Pub/Sub project is configured
	var pubsubHandler *worker.PubSubHandler
	if cfg.ProjectID != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.ProjectID,
			SubscriptionName: cfg.SubscriptionName,
			Dispatcher:       pushService,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if recvErr := pubsubHandler.Start(ctx); recvErr != nil && ctx.Err() == nil {
				log.Error().Err(recvErr).Msg("call-event subscriber stopped")
			}
		}()
	} else {
		log.Info().Msg("PUBSUB_PROJECT_ID not set, call-event subscriber disabled")
	}

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"sweep":   sweepJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
