package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/featureflags"
)

// FeatureFlagsHandler handles the feature flag admin endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{
		service: service,
		logger:  logger.With().Str("component", "featureflags_handler").Logger(),
	}
}

// ClientFeatures handles GET /v1/features - the gates clients act on.
// Only well-known boolean gates are exposed; operational flags like the
// push kill switch stay on the admin surface.
func (h *FeatureFlagsHandler) ClientFeatures(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ClientFeaturesResponse{
		VideoCalls:   h.service.IsVideoCallsEnabled(r.Context()),
		GroupChats:   h.service.IsGroupChatsEnabled(r.Context()),
		Registration: !h.service.IsRegistrationDisabled(r.Context()),
	})
}

// ListFeatureFlags handles GET /v1/admin/flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	keys := make([]string, 0, len(flags))
	for key := range flags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(keys))}
	for _, key := range keys {
		list.Items = append(list.Items, *flags[key])
	}

	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "at least one update is required", []models.FieldError{
			{Field: "updates", Message: "is required"},
		})
		return
	}

	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for _, update := range req.Updates {
		if update.Key == "" {
			response.BadRequest(w, r, "validation error", []models.FieldError{
				{Field: "updates.key", Message: "is required"},
			})
			return
		}
		flags = append(flags, &featureflags.Flag{Key: update.Key, Value: update.Value})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		h.logger.Error().Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "Failed to update feature flags.")
		return
	}

	h.logger.Info().Int("count", len(flags)).Str("reason", req.Reason).Msg("feature flags updated")

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(flags))}
	for _, flag := range flags {
		list.Items = append(list.Items, *flag)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// InvalidateCache handles POST /v1/admin/flags/invalidate - drop the cached
// flags so the next read hits the repository.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
