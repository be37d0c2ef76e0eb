// Package apns delivers VoIP call pushes to iOS devices through the Apple
// Push Notification service. A VoIP push wakes CallKit even when the app is
// terminated, which is why call notifications do not ride the regular alert
// channel.
package apns

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/veilchat/veilchat/internal/push"
)

// reasonExpiredToken is in Apple's response reason list but has no exported
// constant in apns2.
const reasonExpiredToken = "ExpiredToken"

// APNSClient is the subset of apns2.Client used for delivery, extracted so
// tests can substitute a mock.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials for token-based APNs authentication.
type Config struct {
	// KeyPath points at the .p8 signing key downloaded from the developer
	// portal.
	KeyPath string
	KeyID   string
	TeamID  string

	// BundleID is the app's bundle identifier. The VoIP topic is derived
	// from it by appending ".voip".
	BundleID string

	// UseSandbox selects the APNs development environment. Production
	// deployments must turn it off explicitly.
	UseSandbox bool
}

// ConfigFromEnv reads the APNS_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		KeyPath:    os.Getenv("APNS_KEY_PATH"),
		KeyID:      os.Getenv("APNS_KEY_ID"),
		TeamID:     os.Getenv("APNS_TEAM_ID"),
		BundleID:   getEnvOrDefault("APNS_BUNDLE_ID", "im.veilchat.app"),
		UseSandbox: strings.EqualFold(getEnvOrDefault("APNS_USE_SANDBOX", "true"), "true"),
	}
}

// Client sends VoIP pushes to iOS devices. The HTTP/2 connection is built on
// first use; missing or unreadable credentials downgrade every send to
// Skipped so call setup keeps working for other platforms.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	initOnce sync.Once
	client   APNSClient
	topic    string
}

// NewClient creates an APNs client. No connection is made until the first
// send.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "apns").Logger(),
	}
}

// Name implements push.Client.
func (c *Client) Name() string { return "apns" }

// Configured reports whether a usable APNs client exists, building it if
// this is the first call.
func (c *Client) Configured() bool {
	c.init()
	return c.client != nil
}

// Send pushes one incoming-call notification to a single device token.
func (c *Client) Send(ctx context.Context, deviceToken string, n push.Notification) push.DeliveryOutcome {
	c.init()
	if c.client == nil {
		return push.Skipped
	}

	p := payload.NewPayload().
		Custom("caller_name", n.CallerName).
		Custom("call_id", n.CallID).
		Custom("call_type", n.CallType)

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       c.topic,
		PushType:    apns2.PushTypeVOIP,
		Payload:     p,
	}

	res, err := c.client.PushWithContext(ctx, notification)
	if err != nil {
		// Transport trouble says nothing about the token.
		c.logger.Warn().Err(err).
			Str("token_tail", tokenTail(deviceToken)).
			Str("call_id", n.CallID).
			Msg("APNs send failed")
		return push.AttemptFailed
	}

	if res.Sent() {
		c.logger.Debug().
			Str("token_tail", tokenTail(deviceToken)).
			Str("call_id", n.CallID).
			Str("apns_id", res.ApnsID).
			Msg("APNs accepted VoIP push")
		return push.Delivered
	}

	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic, reasonExpiredToken:
		c.logger.Warn().
			Str("token_tail", tokenTail(deviceToken)).
			Str("reason", res.Reason).
			Msg("APNs reports device token dead")
		return push.PermanentlyRejected
	default:
		c.logger.Error().
			Str("token_tail", tokenTail(deviceToken)).
			Str("reason", res.Reason).
			Int("status", res.StatusCode).
			Msg("APNs rejected VoIP push")
		return push.AttemptFailed
	}
}

// init builds the token client once. Failures leave c.client nil, which
// Send translates into Skipped; the warning fires a single time instead of
// on every call attempt.
func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.cfg.KeyPath == "" || c.cfg.KeyID == "" || c.cfg.TeamID == "" {
			c.logger.Warn().Msg("APNs credentials not configured, iOS call pushes disabled")
			return
		}

		authKey, err := token.AuthKeyFromFile(c.cfg.KeyPath)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("key_path", c.cfg.KeyPath).
				Msg("failed to load APNs signing key, iOS call pushes disabled")
			return
		}

		client := apns2.NewTokenClient(&token.Token{
			AuthKey: authKey,
			KeyID:   c.cfg.KeyID,
			TeamID:  c.cfg.TeamID,
		})
		if c.cfg.UseSandbox {
			client = client.Development()
		} else {
			client = client.Production()
		}

		c.client = client
		c.topic = c.cfg.BundleID + ".voip"
		c.logger.Info().
			Str("topic", c.topic).
			Bool("sandbox", c.cfg.UseSandbox).
			Msg("APNs client initialized")
	})
}

// tokenTail returns the last characters of a device token for log
// correlation. Full tokens never reach the logs.
func tokenTail(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[len(token)-4:]
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
