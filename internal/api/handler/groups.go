package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/featureflags"
	"github.com/veilchat/veilchat/internal/groups"
)

// GroupsHandler handles MUC room management endpoints.
type GroupsHandler struct {
	groups *groups.Service
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewGroupsHandler creates a new GroupsHandler.
func NewGroupsHandler(groupsSvc *groups.Service, flags *featureflags.Service, logger zerolog.Logger) *GroupsHandler {
	return &GroupsHandler{
		groups: groupsSvc,
		flags:  flags,
		logger: logger.With().Str("component", "groups_handler").Logger(),
	}
}

// Create handles POST /v1/groups - create a members-only room owned by the
// caller.
func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.GroupCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if h.flags != nil && !h.flags.IsGroupChatsEnabled(r.Context()) {
		response.Forbidden(w, r, "Group chats are currently disabled.")
		return
	}

	group, err := h.groups.Create(r.Context(), GetCallerJID(r.Context()), &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("group creation failed")
		response.BadGateway(w, r, "Group service unavailable. Please try again later.")
		return
	}

	response.JSON(w, r, http.StatusCreated, group)
}

// List handles GET /v1/groups - list the rooms the caller belongs to.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.groups.List(r.Context(), GetCallerJID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("group listing failed")
		response.BadGateway(w, r, "Group service unavailable. Please try again later.")
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// Members handles GET /v1/groups/{groupId}/members - list a room's
// affiliations.
func (h *GroupsHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	if groupID == "" {
		response.BadRequest(w, r, "group ID is required", nil)
		return
	}

	resp, err := h.groups.Members(r.Context(), groupID)
	if err != nil {
		h.logger.Error().Err(err).Str("room", groupID).Msg("member listing failed")
		response.BadGateway(w, r, "Group service unavailable. Please try again later.")
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// AddMember handles POST /v1/groups/{groupId}/members - grant a JID the
// member affiliation.
func (h *GroupsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	if groupID == "" {
		response.BadRequest(w, r, "group ID is required", nil)
		return
	}

	var req models.GroupAddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if err := h.groups.AddMember(r.Context(), groupID, req.JID); err != nil {
		if errors.Is(err, groups.ErrUpstreamUnavailable) {
			h.logger.Error().Err(err).Str("room", groupID).Msg("add member failed")
			response.BadGateway(w, r, "Group service unavailable. Please try again later.")
			return
		}
		h.logger.Error().Err(err).Str("room", groupID).Msg("add member failed")
		response.InternalError(w, r, "Failed to add member.")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{Status: models.StatusOK})
}

// RemoveMember handles DELETE /v1/groups/{groupId}/members/{memberJid} -
// revoke a JID's membership.
func (h *GroupsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	memberJID := chi.URLParam(r, "memberJid")
	if groupID == "" || memberJID == "" {
		response.BadRequest(w, r, "group ID and member JID are required", nil)
		return
	}

	if err := h.groups.RemoveMember(r.Context(), groupID, memberJID); err != nil {
		if errors.Is(err, groups.ErrUpstreamUnavailable) {
			h.logger.Error().Err(err).Str("room", groupID).Msg("remove member failed")
			response.BadGateway(w, r, "Group service unavailable. Please try again later.")
			return
		}
		h.logger.Error().Err(err).Str("room", groupID).Msg("remove member failed")
		response.InternalError(w, r, "Failed to remove member.")
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{Status: models.StatusOK})
}
