package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/ejabberd"
	"github.com/veilchat/veilchat/pkg/jid"
)

// Service errors.
var (
	// ErrUsernameTaken reports a registration against an existing account.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials reports a failed password check.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNotAccountOwner reports an operation on an account the caller's
	// token was not issued for.
	ErrNotAccountOwner = errors.New("token subject does not match account")

	// ErrUpstreamUnavailable reports that the XMPP server could not be
	// reached or gave a broken answer.
	ErrUpstreamUnavailable = errors.New("account directory unavailable")
)

// XMPPDirectory is the slice of the Ejabberd admin API the account service
// uses.
type XMPPDirectory interface {
	RegisterUser(ctx context.Context, username, domain, password string) error
	CheckPassword(ctx context.Context, username, domain, password string) (bool, error)
	UnregisterUser(ctx context.Context, username, domain string) error
}

// DeviceRegistry lists and removes the push registrations attached to an
// account.
type DeviceRegistry interface {
	Devices(ctx context.Context, jid string) ([]models.Device, error)
	RemoveAll(ctx context.Context, jid string) (int64, error)
}

// TokenIssuer signs API bearer tokens for a JID.
type TokenIssuer interface {
	GenerateToken(jid string) (string, time.Time, error)
}

// ServiceConfig holds the dependencies for the account service.
type ServiceConfig struct {
	Repository Repository
	XMPP       XMPPDirectory
	Registry   DeviceRegistry
	Tokens     TokenIssuer

	// Domain is the XMPP domain accounts are created under.
	Domain string

	Logger zerolog.Logger
}

// Service provides account registration, login, deletion, and export.
type Service struct {
	repo     Repository
	xmpp     XMPPDirectory
	registry DeviceRegistry
	tokens   TokenIssuer
	domain   string
	logger   zerolog.Logger
}

// NewService creates a new account service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:     cfg.Repository,
		xmpp:     cfg.XMPP,
		registry: cfg.Registry,
		tokens:   cfg.Tokens,
		domain:   cfg.Domain,
		logger:   cfg.Logger.With().Str("component", "account").Logger(),
	}
}

// Register creates the account with Ejabberd, writes the Kamailio digest
// row, and issues a first bearer token. Usernames are case-folded so the
// same name cannot exist twice with different capitalization.
func (s *Service) Register(ctx context.Context, username, password string) (*models.AccountRegisterResponse, error) {
	username = strings.ToLower(username)

	if err := s.xmpp.RegisterUser(ctx, username, s.domain, password); err != nil {
		if errors.Is(err, ejabberd.ErrAlreadyRegistered) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// The XMPP account is the source of truth. A failed digest write is
	// healed by the upsert on the next login, so it does not fail
	// registration.
	if err := s.repo.UpsertSubscriber(ctx, NewSubscriber(username, s.domain, password)); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to write subscriber row")
	}

	userJID := jid.Compose(username, s.domain)
	token, _, err := s.tokens.GenerateToken(userJID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info().Str("jid", userJID).Msg("account registered")

	return &models.AccountRegisterResponse{
		JID:    userJID,
		Status: models.StatusRegistered,
		Token:  token,
	}, nil
}

// Login verifies the password against Ejabberd and issues a fresh token.
// The Kamailio digest row is re-upserted on every login, which also migrates
// accounts that predate the SIP integration.
func (s *Service) Login(ctx context.Context, username, password string) (*models.AccountLoginResponse, error) {
	username = strings.ToLower(username)

	ok, err := s.xmpp.CheckPassword(ctx, username, s.domain, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.UpsertSubscriber(ctx, NewSubscriber(username, s.domain, password)); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to write subscriber row")
	}

	userJID := jid.Compose(username, s.domain)
	token, _, err := s.tokens.GenerateToken(userJID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	return &models.AccountLoginResponse{
		JID:   userJID,
		Token: token,
	}, nil
}

// Delete removes an account everywhere: push registrations first, then the
// SIP and XMPP credential rows in one transaction, then a best-effort kick
// of any live XMPP session. The caller must prove ownership with their
// token and confirm with their current password.
func (s *Service) Delete(ctx context.Context, callerJID string, input *models.AccountDeleteRequest) error {
	if input.JID != callerJID {
		return ErrNotAccountOwner
	}

	username := jid.Localpart(callerJID)

	ok, err := s.xmpp.CheckPassword(ctx, username, s.domain, input.Password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	// Registrations go through the registry service so its cache drops the
	// JID. If the process dies between this and the row deletion below,
	// the account survives with no devices and clients re-register on next
	// launch.
	removed, err := s.registry.RemoveAll(ctx, callerJID)
	if err != nil {
		return fmt.Errorf("removing push registrations: %w", err)
	}

	if err := s.repo.DeleteAccountRows(ctx, username); err != nil {
		return fmt.Errorf("deleting account rows: %w", err)
	}

	// Row deletion does not disconnect a session that is already
	// authenticated; the admin unregister does. Failure only means the
	// session lives until it expires.
	if err := s.xmpp.UnregisterUser(ctx, username, s.domain); err != nil {
		s.logger.Warn().Err(err).Str("jid", callerJID).Msg("failed to kick live xmpp session")
	}

	s.logger.Info().Str("jid", callerJID).Int64("devices_removed", removed).Msg("account deleted")

	return nil
}

// Me returns the authenticated account view with its registered devices.
func (s *Service) Me(ctx context.Context, callerJID string) (*models.Me, error) {
	devices, err := s.registry.Devices(ctx, callerJID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	return &models.Me{
		JID:     callerJID,
		Devices: devices,
	}, nil
}

// Export assembles the data-export document for an account: what the shared
// database holds about it beyond the XMPP account itself.
func (s *Service) Export(ctx context.Context, callerJID string) (*models.AccountExport, error) {
	username := jid.Localpart(callerJID)

	hasSubscriber, err := s.repo.HasSubscriber(ctx, username, s.domain)
	if err != nil {
		return nil, fmt.Errorf("checking subscriber: %w", err)
	}

	devices, err := s.registry.Devices(ctx, callerJID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	return &models.AccountExport{
		JID:           callerJID,
		SIPSubscriber: hasSubscriber,
		Devices:       devices,
		ExportedAt:    models.Timestamp(time.Now()),
	}, nil
}
