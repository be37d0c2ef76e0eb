package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/account"
	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/api/response"
	"github.com/veilchat/veilchat/internal/featureflags"
)

// AccountHandler handles account lifecycle endpoints.
type AccountHandler struct {
	accounts *account.Service
	flags    *featureflags.Service
	logger   zerolog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *account.Service, flags *featureflags.Service, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		flags:    flags,
		logger:   logger.With().Str("component", "account_handler").Logger(),
	}
}

// Register handles POST /v1/account/register - create an account across
// Ejabberd, Kamailio, and the API.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.AccountRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if h.flags != nil && h.flags.IsRegistrationDisabled(r.Context()) {
		response.Forbidden(w, r, "Registration is currently closed.")
		return
	}

	resp, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrUsernameTaken):
			response.Conflict(w, r, "That username is already taken.")
		case errors.Is(err, account.ErrUpstreamUnavailable):
			h.logger.Error().Err(err).Msg("registration upstream unavailable")
			response.BadGateway(w, r, "Registration service unavailable. Please try again later.")
		default:
			h.logger.Error().Err(err).Msg("registration failed")
			response.InternalError(w, r, "Registration failed. Please try again later.")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// Login handles POST /v1/account/login - verify credentials and issue a
// bearer token.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AccountLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidCredentials):
			response.Unauthorized(w, r, "Invalid username or password.")
		case errors.Is(err, account.ErrUpstreamUnavailable):
			h.logger.Error().Err(err).Msg("login upstream unavailable")
			response.BadGateway(w, r, "Authentication service unavailable.")
		default:
			h.logger.Error().Err(err).Msg("login failed")
			response.InternalError(w, r, "Login failed. Please try again later.")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// Delete handles DELETE /v1/account - remove the caller's account and all
// associated data. The current password is required as confirmation.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.AccountDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	err := h.accounts.Delete(r.Context(), GetCallerJID(r.Context()), &req)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrNotAccountOwner):
			response.Forbidden(w, r, "Token JID does not match request JID")
		case errors.Is(err, account.ErrInvalidCredentials):
			response.Unauthorized(w, r, "Invalid username or password.")
		case errors.Is(err, account.ErrUpstreamUnavailable):
			h.logger.Error().Err(err).Msg("account deletion upstream unavailable")
			response.BadGateway(w, r, "Account service unavailable.")
		default:
			h.logger.Error().Err(err).Msg("account deletion failed")
			response.InternalError(w, r, "Account deletion failed. Please try again later.")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.StatusResponse{Status: models.StatusDeleted})
}
