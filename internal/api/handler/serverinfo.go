package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/serverinfo"
)

// ServerInfoHandler serves the connection discovery document.
type ServerInfoHandler struct {
	info   *serverinfo.Service
	logger zerolog.Logger
}

// NewServerInfoHandler creates a new ServerInfoHandler.
func NewServerInfoHandler(info *serverinfo.Service, logger zerolog.Logger) *ServerInfoHandler {
	return &ServerInfoHandler{
		info:   info,
		logger: logger.With().Str("component", "serverinfo_handler").Logger(),
	}
}

// Info handles GET /v1/server/info - return the endpoints and versions a
// client needs to connect. Served without authentication so clients can
// bootstrap before they have an account.
func (h *ServerInfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.info.Info())
}
