package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/featureflags"
	"github.com/veilchat/veilchat/internal/push"
	"github.com/veilchat/veilchat/internal/registry"
)

// PushHandler handles push registration endpoints and the call-notify
// webhook Kamailio posts for offline callees.
type PushHandler struct {
	registry *registry.Service
	push     *push.Service
	flags    *featureflags.Service
	logger   zerolog.Logger
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(registrySvc *registry.Service, pushSvc *push.Service, flags *featureflags.Service, logger zerolog.Logger) *PushHandler {
	return &PushHandler{
		registry: registrySvc,
		push:     pushSvc,
		flags:    flags,
		logger:   logger.With().Str("component", "push_handler").Logger(),
	}
}

// Register handles POST /v1/push/register - register or rotate a device
// push token.
func (h *PushHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.PushRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	// A token only ever registers devices for its own JID.
	if req.JID != GetCallerJID(r.Context()) {
		response.Forbidden(w, r, "Token JID does not match request JID")
		return
	}

	if err := h.registry.Register(r.Context(), &req); err != nil {
		h.logger.Error().Err(err).Str("jid", req.JID).Msg("push registration failed")
		response.InternalError(w, r, "could not store push registration")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{Status: models.StatusRegistered})
}

// Deregister handles DELETE /v1/push/register - remove a device push token.
func (h *PushHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	var req models.PushDeregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if req.JID != GetCallerJID(r.Context()) {
		response.Forbidden(w, r, "Token JID does not match request JID")
		return
	}

	if err := h.registry.Deregister(r.Context(), req.JID, req.DeviceID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			response.NotFound(w, r, "Push registration not found")
			return
		}
		h.logger.Error().Err(err).Str("jid", req.JID).Msg("push deregistration failed")
		response.InternalError(w, r, "could not remove push registration")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{Status: models.StatusDeregistered})
}

// CallNotify handles POST /v1/push/call-notify - wake a callee's devices
// for an incoming call.
//
// Kamailio posts this when the callee has no live SIP registration. The
// request arrives over the internal network and carries no bearer token,
// so nothing in the body is trusted beyond schema validation. The payload
// pushed to devices is ring metadata only; message content stays on the
// XMPP side.
func (h *PushHandler) CallNotify(w http.ResponseWriter, r *http.Request) {
	var req models.CallNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.UnprocessableEntity(w, r, "validation error", errs)
		return
	}

	if h.flags != nil && h.flags.IsPushSendingDisabled(r.Context()) {
		h.logger.Warn().
			Str("call_id", req.CallID).
			Str("callee", req.CalleeUsername).
			Msg("push sending disabled by feature flag, dropping call notification")
		response.JSON(w, r, http.StatusOK, models.CallNotifyResponse{
			Status: models.CallNotifyStatusDisabled,
		})
		return
	}

	callType := req.CallType
	if callType == "" {
		callType = models.CallTypeAudio
	}

	summary, err := h.push.Dispatch(r.Context(), req.CalleeUsername, push.Notification{
		CallerName: req.CallerName(),
		CallID:     req.CallID,
		CallType:   string(callType),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("call_id", req.CallID).Msg("call notification dispatch failed")
		response.ServiceUnavailable(w, r, "push delivery unavailable")
		return
	}

	if summary.Registrations == 0 {
		response.JSON(w, r, http.StatusOK, models.CallNotifyResponse{
			Status: models.CallNotifyStatusNoRegistrations,
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.CallNotifyResponse{
		Status: models.CallNotifyStatusSent,
		Sent:   summary.Sent,
	})
}
