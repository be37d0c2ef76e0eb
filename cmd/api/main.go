// Package main provides the entrypoint for the Veil API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/account"
	"github.com/veilchat/veilchat/internal/api"
	"github.com/veilchat/veilchat/internal/api/handler"
	"github.com/veilchat/veilchat/internal/api/middleware"
	"github.com/veilchat/veilchat/internal/auth"
	"github.com/veilchat/veilchat/internal/database"
	"github.com/veilchat/veilchat/internal/ejabberd"
	"github.com/veilchat/veilchat/internal/featureflags"
	"github.com/veilchat/veilchat/internal/groups"
	"github.com/veilchat/veilchat/internal/provider/resilience"
	"github.com/veilchat/veilchat/internal/push"
	"github.com/veilchat/veilchat/internal/push/apns"
	"github.com/veilchat/veilchat/internal/push/fcm"
	"github.com/veilchat/veilchat/internal/registry"
	"github.com/veilchat/veilchat/internal/serverinfo"
	"github.com/veilchat/veilchat/internal/telemetry"
	"github.com/veilchat/veilchat/internal/turn"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// registrationCacheTTL bounds how stale a cached device list may go when a
// Redis invalidation is missed.
const registrationCacheTTL = 5 * time.Minute

func main() {
	const serviceName = "veil-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Veil API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	domain := os.Getenv("XMPP_DOMAIN")
	if domain == "" {
		domain = "veilchat.im"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api." + domain,
		Audience:   serviceName,
	})

	// Initialize the push registration registry, optionally fronted by a
	// Redis read-aside cache for the call-notify hot path
	var registryRepo registry.Repository = registry.NewPostgresRepository(pool)
	var cachePinger handler.Pinger
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
		cache, cacheErr := registry.NewRedisCache(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)
		if cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("redis unavailable, registry cache disabled")
		} else {
			registryRepo = registry.NewCachedRepository(registryRepo, cache, registrationCacheTTL, log)
			cachePinger = cache
			log.Info().Str("addr", redisAddr).Msg("registry cache enabled")
		}
	}
	registryService := registry.NewService(registryRepo)
	log.Info().Msg("registry service initialized")

	// Initialize the push providers and the call-notify dispatcher.
	// Unconfigured providers skip their platform instead of failing startup.
	apnsClient := apns.NewClient(apns.ConfigFromEnv(), log)
	fcmClient := fcm.NewClient(fcm.ConfigFromEnv(), log)

	pushService := push.NewService(push.ServiceConfig{
		Registry: registryRepo,
		Clients: map[registry.Platform]push.Client{
			registry.PlatformIOS:     apnsClient,
			registry.PlatformAndroid: fcmClient,
		},
		Domain: domain,
		Logger: log,
	})
	log.Info().Msg("push dispatcher initialized")

	// Initialize the Ejabberd admin client shared by account and group
	// management
	ejabberdConfig := ejabberd.ConfigFromEnv()
	ejabberdConfig.Logger = log
	ejabberdClient := ejabberd.NewClient(ejabberdConfig)
	log.Info().Str("api_url", ejabberdConfig.APIURL).Msg("ejabberd admin client initialized")

	// Initialize account service
	accountService := account.NewService(account.ServiceConfig{
		Repository: account.NewPostgresRepository(pool),
		XMPP:       ejabberdClient,
		Registry:   registryService,
		Tokens:     jwtService,
		Domain:     domain,
		Logger:     log,
	})
	log.Info().Msg("account service initialized")

	// Initialize groups service
	groupsService := groups.NewService(groups.ServiceConfig{
		Directory: ejabberdClient,
		Domain:    domain,
		Logger:    log,
	})
	log.Info().Msg("groups service initialized")

	// Initialize TURN credential service
	turnSecret := os.Getenv("TURN_SECRET")
	if turnSecret == "" {
		turnSecret = "local-dev-turn-secret-change-in-production"
		log.Warn().Msg("using default TURN secret - not secure for production")
	}
	turnDomain := os.Getenv("TURN_DOMAIN")
	if turnDomain == "" {
		turnDomain = "turn." + domain
	}
	turnService := turn.NewService(turn.ServiceConfig{
		Secret: turnSecret,
		Domain: turnDomain,
	})
	log.Info().Msg("turn service initialized")

	// Initialize server discovery service
	serverInfoService := serverinfo.NewService(serverinfo.ConfigFromEnv())

	// Initialize feature flags repository and service
	ffRepo := featureflags.NewPostgresRepository(pool)
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: ffRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Tokens:             jwtService,
		AccountService:     accountService,
		RegistryService:    registryService,
		PushService:        pushService,
		GroupsService:      groupsService,
		TurnService:        turnService,
		ServerInfoService:  serverInfoService,
		FeatureFlagService: ffService,
		Providers:          resilience.GlobalRegistry,
		DB:                 pool,
		Cache:              cachePinger,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
