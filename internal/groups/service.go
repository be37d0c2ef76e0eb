// Package groups manages multi-user chat rooms. Rooms live entirely inside
// Ejabberd's MUC service; this package holds no state of its own and
// translates between the REST surface and admin API commands.
package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/internal/ejabberd"
	"github.com/veilchat/veilchat/pkg/jid"
)

// Affiliations this service assigns. Ejabberd knows more (admin, outcast);
// the API surface only deals in these three.
const (
	AffiliationOwner  = "owner"
	AffiliationMember = "member"
	AffiliationNone   = "none"
)

// ErrUpstreamUnavailable reports that the MUC service could not be reached
// or refused a command.
var ErrUpstreamUnavailable = errors.New("group service unavailable")

// Directory is the slice of the Ejabberd admin API the groups service uses.
type Directory interface {
	CreateRoom(ctx context.Context, room, service, host, title string) error
	SetRoomAffiliation(ctx context.Context, room, service, memberJID, affiliation string) error
	UserRooms(ctx context.Context, username, domain string) ([]string, error)
	RoomOptions(ctx context.Context, room, service string) ([]ejabberd.RoomOption, error)
	RoomAffiliations(ctx context.Context, room, service string) ([]ejabberd.RoomAffiliation, error)
}

// ServiceConfig holds the dependencies for the groups service.
type ServiceConfig struct {
	Directory Directory

	// Domain is the XMPP domain; the MUC service lives at "muc." + Domain.
	Domain string

	Logger zerolog.Logger
}

// Service provides group creation, listing, and membership management.
type Service struct {
	directory Directory
	domain    string
	logger    zerolog.Logger
}

// NewService creates a new groups service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		directory: cfg.Directory,
		domain:    cfg.Domain,
		logger:    cfg.Logger.With().Str("component", "groups").Logger(),
	}
}

// mucService returns the MUC host rooms are created on.
func (s *Service) mucService() string {
	return "muc." + s.domain
}

// Create creates a members-only room, makes the caller its owner, and
// invites the initial members. The room node is a generated identifier; the
// human-readable name travels in the room title so renames never break the
// room address.
func (s *Service) Create(ctx context.Context, callerJID string, input *models.GroupCreateRequest) (*models.Group, error) {
	roomID := uuid.New().String()
	service := s.mucService()

	if err := s.directory.CreateRoom(ctx, roomID, service, s.domain, input.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// The room exists from here on. Affiliation trouble is repairable
	// through the membership endpoints, so it downgrades to a log line
	// instead of stranding a created room behind an error response.
	if err := s.directory.SetRoomAffiliation(ctx, roomID, service, callerJID, AffiliationOwner); err != nil {
		s.logger.Error().Err(err).Str("room", roomID).Str("jid", callerJID).Msg("failed to set room owner")
	}

	for _, memberJID := range input.MemberJIDs {
		if err := s.directory.SetRoomAffiliation(ctx, roomID, service, memberJID, AffiliationMember); err != nil {
			s.logger.Error().Err(err).Str("room", roomID).Str("jid", memberJID).Msg("failed to add initial member")
		}
	}

	s.logger.Info().Str("room", roomID).Str("owner", callerJID).Int("members", len(input.MemberJIDs)).Msg("group created")

	return &models.Group{
		GroupID: roomID,
		JID:     roomID + "@" + service,
		Name:    input.Name,
	}, nil
}

// List returns the rooms the caller belongs to. Room titles come from a
// per-room options lookup; a room whose options cannot be read falls back
// to its node name rather than dropping out of the list.
func (s *Service) List(ctx context.Context, callerJID string) (*models.GroupListResponse, error) {
	username := jid.Localpart(callerJID)
	service := s.mucService()

	rooms, err := s.directory.UserRooms(ctx, username, s.domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	groups := make([]models.Group, 0, len(rooms))
	for _, room := range rooms {
		node := jid.Localpart(room)

		title := node
		options, err := s.directory.RoomOptions(ctx, node, service)
		if err != nil {
			s.logger.Warn().Err(err).Str("room", node).Msg("failed to read room options")
		} else {
			for _, opt := range options {
				if opt.Name == "title" && opt.Value != "" {
					title = opt.Value
					break
				}
			}
		}

		roomJID := room
		if !strings.Contains(room, "@") {
			roomJID = room + "@" + service
		}

		groups = append(groups, models.Group{
			GroupID: node,
			JID:     roomJID,
			Name:    title,
		})
	}

	return &models.GroupListResponse{Groups: groups}, nil
}

// Members lists the members of a room with their affiliations.
func (s *Service) Members(ctx context.Context, groupID string) (*models.GroupMembersResponse, error) {
	affiliations, err := s.directory.RoomAffiliations(ctx, groupID, s.mucService())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	members := make([]models.GroupMember, 0, len(affiliations))
	for _, a := range affiliations {
		members = append(members, models.GroupMember{
			JID:         a.JID,
			Affiliation: models.Affiliation(a.Affiliation),
		})
	}

	return &models.GroupMembersResponse{Members: members}, nil
}

// AddMember grants a user membership in a room.
func (s *Service) AddMember(ctx context.Context, groupID, memberJID string) error {
	if err := s.directory.SetRoomAffiliation(ctx, groupID, s.mucService(), memberJID, AffiliationMember); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.logger.Info().Str("room", groupID).Str("jid", memberJID).Msg("member added")
	return nil
}

// RemoveMember revokes a user's membership. Ejabberd treats affiliation
// "none" as removal, which also works for users who were never members.
func (s *Service) RemoveMember(ctx context.Context, groupID, memberJID string) error {
	if err := s.directory.SetRoomAffiliation(ctx, groupID, s.mucService(), memberJID, AffiliationNone); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.logger.Info().Str("room", groupID).Str("jid", memberJID).Msg("member removed")
	return nil
}
