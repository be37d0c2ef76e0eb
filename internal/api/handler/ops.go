// Package handler provides HTTP handlers for the Veil API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/provider/resilience"
	"github.com/veilchat/veilchat/internal/push"
)

// subsystemCheckTimeout bounds each dependency probe so a hung backend
// cannot stall the whole status endpoint.
const subsystemCheckTimeout = 2 * time.Second

// Pinger is the connectivity probe the ops endpoints run against backing
// stores. Both pgxpool.Pool and registry.RedisCache satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	cache     Pinger
	push      *push.Service
	providers *resilience.Registry
	logger    zerolog.Logger
}

// NewOpsHandler creates a new OpsHandler. The cache pinger may be nil when
// the registry runs without Redis; the db pinger may be nil in tests.
func NewOpsHandler(version, buildTime string, db, cache Pinger, pushSvc *push.Service, providers *resilience.Registry, logger zerolog.Logger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		cache:     cache,
		push:      pushSvc,
		providers: providers,
		logger:    logger.With().Str("component", "ops_handler").Logger(),
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Only Postgres
// gates readiness: the Redis cache is read-through and the push providers
// degrade per call, so neither should pull the whole instance out of
// rotation.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), subsystemCheckTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error().Err(err).Msg("readiness check failed")
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"postgres": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), subsystemCheckTimeout)
	defer cancel()

	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.subsystemStatuses(ctx),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		switch s.Status {
		case models.HealthStatusFail:
			status.Status = models.HealthStatusFail
		case models.HealthStatusDegraded:
			if status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				break
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystemStatuses(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, 2)

	subsystems = append(subsystems, h.pingSubsystem(ctx, "postgres", h.db))
	if h.cache != nil {
		subsystems = append(subsystems, h.pingSubsystem(ctx, "redis", h.cache))
	}

	return subsystems
}

func (h *OpsHandler) pingSubsystem(ctx context.Context, name string, p Pinger) models.SubsystemStatus {
	if p == nil {
		detail := "not configured"
		return models.SubsystemStatus{Name: name, Status: models.HealthStatusDegraded, Detail: &detail}
	}
	if err := p.Ping(ctx); err != nil {
		detail := err.Error()
		return models.SubsystemStatus{Name: name, Status: models.HealthStatusFail, Detail: &detail}
	}
	return models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
}

// providerStatuses merges the push dispatcher's per-provider view with the
// circuit breaker registry that fronts the Ejabberd admin API.
func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	var providers []models.ProviderStatus

	if h.push != nil {
		statuses := h.push.ProviderStatus()
		names := make([]string, 0, len(statuses))
		for name := range statuses {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			providers = append(providers, pushProviderStatus(name, statuses[name]))
		}
	}

	if h.providers != nil {
		health := h.providers.GetAllHealth()
		sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
		for _, ph := range health {
			providers = append(providers, circuitProviderStatus(ph))
		}
	}

	if providers == nil {
		providers = []models.ProviderStatus{}
	}
	return providers
}

func pushProviderStatus(name string, ps push.ProviderStatus) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider: name,
		Status:   models.HealthStatusOK,
	}

	if !ps.Configured {
		msg := "not configured"
		out.Status = models.HealthStatusDegraded
		out.Message = &msg
		return out
	}

	if !ps.LastSuccessAt.IsZero() {
		t := models.Timestamp(ps.LastSuccessAt)
		out.LastSuccessAt = &t
	}
	if !ps.LastFailureAt.IsZero() {
		t := models.Timestamp(ps.LastFailureAt)
		out.LastFailureAt = &t
	}
	if ps.LastFailureAt.After(ps.LastSuccessAt) {
		out.Status = models.HealthStatusDegraded
	}

	return out
}

func circuitProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider: ph.Name,
		Status:   models.HealthStatusOK,
	}

	switch {
	case ph.IsUnhealthy():
		out.Status = models.HealthStatusFail
	case ph.IsDegraded():
		out.Status = models.HealthStatusDegraded
	}

	if ph.LastSuccessAt != nil {
		t := models.Timestamp(*ph.LastSuccessAt)
		out.LastSuccessAt = &t
	}
	if ph.LastFailureAt != nil {
		t := models.Timestamp(*ph.LastFailureAt)
		out.LastFailureAt = &t
	}
	if ph.LastError != "" {
		msg := ph.LastError
		out.Message = &msg
	}

	return out
}
