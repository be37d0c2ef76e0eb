package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/turn"
)

// TurnHandler handles TURN credential endpoints.
type TurnHandler struct {
	turn   *turn.Service
	logger zerolog.Logger
}

// NewTurnHandler creates a new TurnHandler.
func NewTurnHandler(turnSvc *turn.Service, logger zerolog.Logger) *TurnHandler {
	return &TurnHandler{
		turn:   turnSvc,
		logger: logger.With().Str("component", "turn_handler").Logger(),
	}
}

// Credentials handles GET /v1/turn/credentials - mint time-limited relay
// credentials for the caller. Derivation is pure HMAC, so this never fails
// and never talks to coturn.
func (h *TurnHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	creds := h.turn.Credentials(GetCallerJID(r.Context()))
	response.JSON(w, r, http.StatusOK, creds)
}
