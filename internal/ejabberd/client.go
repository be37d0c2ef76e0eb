// Package ejabberd wraps the Ejabberd admin REST API. Veil fronts the XMPP
// server for account and group-chat management; every command here is a POST
// of a JSON body to {api}/{command} on the admin port.
package ejabberd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/veilchat/veilchat/internal/provider/resilience"
	"github.com/veilchat/veilchat/pkg/jid"
)

const (
	// ProviderName identifies the XMPP upstream in health reporting.
	ProviderName = "ejabberd"

	// DefaultAPIURL is the admin API endpoint inside the deployment
	// network.
	DefaultAPIURL = "https://ejabberd:5443/api"
)

// ErrAlreadyRegistered is returned by RegisterUser when the username is
// taken.
var ErrAlreadyRegistered = errors.New("username already registered")

// RoomAffiliation is one member entry of a MUC room.
type RoomAffiliation struct {
	JID         string
	Affiliation string
}

// RoomOption is a single MUC room configuration pair.
type RoomOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ClientConfig holds configuration for the Ejabberd admin client.
type ClientConfig struct {
	// APIURL is the admin API base URL (optional, defaults to the
	// in-cluster endpoint).
	APIURL string

	// InsecureSkipVerify accepts the self-signed certificate Ejabberd
	// ships with. The admin port is only reachable on the deployment
	// network.
	InsecureSkipVerify bool

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a resilient client is built with retries disabled: admin
	// commands mutate server state and must not be replayed.
	HTTPClient *resilience.Client

	// Providers is the health registry to report into (optional).
	// If nil, the global registry is used.
	Providers *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// ConfigFromEnv reads the EJABBERD_* environment variables.
func ConfigFromEnv() ClientConfig {
	return ClientConfig{
		APIURL:             getEnvOrDefault("EJABBERD_API_URL", DefaultAPIURL),
		InsecureSkipVerify: strings.EqualFold(getEnvOrDefault("EJABBERD_API_TLS_SKIP_VERIFY", "true"), "true"),
	}
}

// Client is an Ejabberd admin API client.
type Client struct {
	apiURL     string
	httpClient *resilience.Client
	providers  *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new Ejabberd admin client.
func NewClient(cfg ClientConfig) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.DisableRetries = true
		if cfg.InsecureSkipVerify {
			clientCfg.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed cert on the private admin port
			}
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	providers := cfg.Providers
	if providers == nil {
		providers = resilience.GlobalRegistry
	}
	providers.Register(ProviderName, httpClient)

	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
		providers:  providers,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// RegisterUser creates an XMPP account. ErrAlreadyRegistered reports a taken
// username; any other failure means the account was not created.
func (c *Client) RegisterUser(ctx context.Context, username, domain, password string) error {
	resp, err := c.command(ctx, "register", map[string]string{
		"user":     username,
		"host":     domain,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("ejabberd register: %w", err)
	}
	defer resp.Body.Close()

	body := readBody(resp.Body)

	// Older Ejabberd releases answer 200 with an error string instead of a
	// conflict status.
	if resp.StatusCode == http.StatusConflict ||
		(resp.StatusCode == http.StatusOK && strings.Contains(strings.ToLower(body), "already registered")) {
		return ErrAlreadyRegistered
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error().Int("status", resp.StatusCode).Str("body", body).Msg("ejabberd register failed")
		return fmt.Errorf("ejabberd register: unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// CheckPassword verifies account credentials. It returns false with a nil
// error for a wrong password; errors are reserved for not being able to ask.
func (c *Client) CheckPassword(ctx context.Context, username, domain, password string) (bool, error) {
	resp, err := c.command(ctx, "check_password", map[string]string{
		"user":     username,
		"host":     domain,
		"password": password,
	})
	if err != nil {
		return false, fmt.Errorf("ejabberd check_password: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ejabberd check_password: unexpected status code: %d", resp.StatusCode)
	}

	// check_password answers plain-text "0" for a match, "1" otherwise.
	return strings.TrimSpace(readBody(resp.Body)) == "0", nil
}

// UnregisterUser removes an XMPP account. Unknown users are not an error;
// account deletion must be idempotent.
func (c *Client) UnregisterUser(ctx context.Context, username, domain string) error {
	resp, err := c.command(ctx, "unregister", map[string]string{
		"user": username,
		"host": domain,
	})
	if err != nil {
		return fmt.Errorf("ejabberd unregister: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ejabberd unregister: unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// CreateRoom creates a persistent members-only MUC room with message
// archiving on. The title is the human-readable group name; the room's node
// name stays a server-generated identifier.
func (c *Client) CreateRoom(ctx context.Context, room, service, host, title string) error {
	resp, err := c.command(ctx, "create_room_with_opts", map[string]any{
		"name":    room,
		"service": service,
		"host":    host,
		"options": []RoomOption{
			{Name: "title", Value: title},
			{Name: "persistentroom", Value: "true"},
			{Name: "membersonly", Value: "true"},
			{Name: "allow_user_invites", Value: "true"},
			{Name: "mam", Value: "true"},
		},
	})
	if err != nil {
		return fmt.Errorf("ejabberd create_room_with_opts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error().Int("status", resp.StatusCode).Str("room", room).Str("body", readBody(resp.Body)).Msg("ejabberd room creation failed")
		return fmt.Errorf("ejabberd create_room_with_opts: unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// SetRoomAffiliation grants or revokes a member's standing in a room.
// Affiliation "none" removes the member.
func (c *Client) SetRoomAffiliation(ctx context.Context, room, service, memberJID, affiliation string) error {
	resp, err := c.command(ctx, "set_room_affiliation", map[string]string{
		"name":        room,
		"service":     service,
		"jid":         memberJID,
		"affiliation": affiliation,
	})
	if err != nil {
		return fmt.Errorf("ejabberd set_room_affiliation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ejabberd set_room_affiliation: unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// UserRooms lists the rooms a user belongs to. Entries are usually full room
// JIDs; callers must tolerate bare node names from older servers.
func (c *Client) UserRooms(ctx context.Context, username, domain string) ([]string, error) {
	resp, err := c.command(ctx, "get_user_rooms", map[string]string{
		"user": username,
		"host": domain,
	})
	if err != nil {
		return nil, fmt.Errorf("ejabberd get_user_rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ejabberd get_user_rooms: unexpected status code: %d", resp.StatusCode)
	}

	var rooms []string
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("decoding get_user_rooms response: %w", err)
	}

	return rooms, nil
}

// RoomOptions fetches the configuration of a room.
func (c *Client) RoomOptions(ctx context.Context, room, service string) ([]RoomOption, error) {
	resp, err := c.command(ctx, "get_room_options", map[string]string{
		"name":    room,
		"service": service,
	})
	if err != nil {
		return nil, fmt.Errorf("ejabberd get_room_options: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ejabberd get_room_options: unexpected status code: %d", resp.StatusCode)
	}

	var options []RoomOption
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return nil, fmt.Errorf("decoding get_room_options response: %w", err)
	}

	return options, nil
}

// RoomAffiliations lists the members of a room with their standing.
func (c *Client) RoomAffiliations(ctx context.Context, room, service string) ([]RoomAffiliation, error) {
	resp, err := c.command(ctx, "get_room_affiliations", map[string]string{
		"name":    room,
		"service": service,
	})
	if err != nil {
		return nil, fmt.Errorf("ejabberd get_room_affiliations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ejabberd get_room_affiliations: unexpected status code: %d", resp.StatusCode)
	}

	var entries []affiliationEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding get_room_affiliations response: %w", err)
	}

	affiliations := make([]RoomAffiliation, 0, len(entries))
	for _, entry := range entries {
		affiliations = append(affiliations, entry.toAffiliation())
	}

	return affiliations, nil
}

// command posts one admin API command. The admin API takes every command as
// a POST regardless of whether it reads or writes. Reachability, not command
// outcome, is what feeds the provider health registry: a 409 conflict still
// proves the upstream is answering.
func (c *Client) command(ctx context.Context, name string, args any) (*http.Response, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s arguments: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.providers.RecordFailure(ProviderName, err)
		return nil, err
	}
	c.providers.RecordSuccess(ProviderName)
	return resp, nil
}

// affiliationEntry covers both wire shapes the admin API produces: newer
// servers send jid plus affiliation, older ones split the JID into username
// and domain fields.
type affiliationEntry struct {
	Username    string `json:"username"`
	Domain      string `json:"domain"`
	JID         string `json:"jid"`
	Affiliation string `json:"affiliation"`
}

func (e affiliationEntry) toAffiliation() RoomAffiliation {
	memberJID := e.JID
	if memberJID == "" && e.Username != "" {
		memberJID = jid.Compose(e.Username, e.Domain)
	}
	return RoomAffiliation{
		JID:         memberJID,
		Affiliation: e.Affiliation,
	}
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
