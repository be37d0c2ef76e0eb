// Package api provides the HTTP API for the Veil backend.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/account"
	"github.com/veilchat/veilchat/internal/api/handler"
	"github.com/veilchat/veilchat/internal/api/middleware"
	"github.com/veilchat/veilchat/internal/featureflags"
	"github.com/veilchat/veilchat/internal/groups"
	"github.com/veilchat/veilchat/internal/provider/resilience"
	"github.com/veilchat/veilchat/internal/push"
	"github.com/veilchat/veilchat/internal/registry"
	"github.com/veilchat/veilchat/internal/serverinfo"
	"github.com/veilchat/veilchat/internal/turn"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Tokens middleware.TokenValidator

	AccountService     *account.Service
	RegistryService    *registry.Service
	PushService        *push.Service
	GroupsService      *groups.Service
	TurnService        *turn.Service
	ServerInfoService  *serverinfo.Service
	FeatureFlagService *featureflags.Service

	// Providers exposes upstream circuit breaker health on the status
	// endpoint.
	Providers *resilience.Registry

	// DB and Cache back the readiness and status probes. Cache may be nil
	// when the registry runs without Redis.
	DB    handler.Pinger
	Cache handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "veil-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Cache, cfg.PushService, cfg.Providers, cfg.Logger)
	accountHandler := handler.NewAccountHandler(cfg.AccountService, cfg.FeatureFlagService, cfg.Logger)
	pushHandler := handler.NewPushHandler(cfg.RegistryService, cfg.PushService, cfg.FeatureFlagService, cfg.Logger)
	groupsHandler := handler.NewGroupsHandler(cfg.GroupsService, cfg.FeatureFlagService, cfg.Logger)
	turnHandler := handler.NewTurnHandler(cfg.TurnService, cfg.Logger)
	serverInfoHandler := handler.NewServerInfoHandler(cfg.ServerInfoService, cfg.Logger)
	meHandler := handler.NewMeHandler(cfg.AccountService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.Tokens)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)         // 10 req/min
	webhookRateLimit := middleware.RateLimitByIP(middleware.WebhookRateLimit)   // 300 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	userRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)   // 100 req/min per JID

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Account lifecycle - strict rate limiting on the public endpoints
		r.Route("/account", func(r chi.Router) {
			r.With(authRateLimit).Post("/register", accountHandler.Register)
			r.With(authRateLimit).Post("/login", accountHandler.Login)
			// Deletion requires a valid token on top of the password check
			r.With(authMiddleware).Delete("/", accountHandler.Delete)
		})

		// Push registration and the call-notify webhook
		r.Route("/push", func(r chi.Router) {
			r.With(authMiddleware, userRateLimit).Post("/register", pushHandler.Register)
			r.With(authMiddleware, userRateLimit).Delete("/register", pushHandler.Deregister)

			// Kamailio posts here from inside the deployment; it carries no
			// bearer token, so the rate limit is the only throttle.
			r.With(webhookRateLimit).Post("/call-notify", pushHandler.CallNotify)
		})

		// Group management (authenticated) - user-based rate limiting
		r.Route("/groups", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Get("/", groupsHandler.List)
			r.Post("/", groupsHandler.Create)
			r.Route("/{groupId}/members", func(r chi.Router) {
				r.Get("/", groupsHandler.Members)
				r.Post("/", groupsHandler.AddMember)
				r.Delete("/{memberJid}", groupsHandler.RemoveMember)
			})
		})

		// TURN credentials (authenticated)
		r.With(authMiddleware, userRateLimit).Get("/turn/credentials", turnHandler.Credentials)

		// Connection discovery (public) - standard rate limiting
		r.With(standardRateLimit).Get("/server/info", serverInfoHandler.Info)

		// Client feature gates (public) - standard rate limiting
		r.With(standardRateLimit).Get("/features", featureFlagsHandler.ClientFeatures)

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Get("/", meHandler.GetMe)
			r.Get("/export", meHandler.Export)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
