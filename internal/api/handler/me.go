package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/account"
	"github.com/veilchat/veilchat/internal/api/response"
)

// MeHandler handles the authenticated account view and data export.
type MeHandler struct {
	accounts *account.Service
	logger   zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(accounts *account.Service, logger zerolog.Logger) *MeHandler {
	return &MeHandler{
		accounts: accounts,
		logger:   logger.With().Str("component", "me_handler").Logger(),
	}
}

// GetMe handles GET /v1/me - return the caller's JID and registered devices.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	me, err := h.accounts.Me(r.Context(), GetCallerJID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("account lookup failed")
		response.InternalError(w, r, "Failed to load account.")
		return
	}

	response.JSON(w, r, http.StatusOK, me)
}

// Export handles GET /v1/me/export - return everything the backend stores
// about the caller in one document.
func (h *MeHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.accounts.Export(r.Context(), GetCallerJID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("account export failed")
		response.InternalError(w, r, "Failed to export account data.")
		return
	}

	response.JSON(w, r, http.StatusOK, export)
}
