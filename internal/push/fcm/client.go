// Package fcm delivers call pushes to Android devices through Firebase Cloud
// Messaging. Messages are data-only so the app's own service handles them
// even in the background; a notification-type message would be swallowed by
// the system tray instead of starting the incoming-call screen.
package fcm

import (
	"context"
	"os"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/veilchat/veilchat/internal/push"
)

// MessagingClient is the subset of the Firebase messaging API used for
// delivery, extracted so tests can substitute a mock.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Config holds the Firebase service account location.
type Config struct {
	// ServiceAccountPath points at the service account JSON key. Empty
	// means FCM is not configured and Android sends are skipped.
	ServiceAccountPath string
}

// ConfigFromEnv reads the FCM_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		ServiceAccountPath: os.Getenv("FCM_SERVICE_ACCOUNT_PATH"),
	}
}

// Client sends call pushes to Android devices. The Firebase app is built on
// first use; a missing or broken service account downgrades every send to
// Skipped so call setup keeps working for other platforms.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	initOnce sync.Once
	client   MessagingClient
}

// NewClient creates an FCM client. No credentials are touched until the
// first send.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "fcm").Logger(),
	}
}

// Name implements push.Client.
func (c *Client) Name() string { return "fcm" }

// Configured reports whether a usable messaging client exists, building it
// if this is the first call.
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

	// Sixty seconds covers SIP ring timeout; a call push delivered later
	// than that would wake the device for a call that already went to
	// voicemail.
	ttl := 60 * time.Second

	msg := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":        "call",
			"caller_name": n.CallerName,
			"call_id":     n.CallID,
			"call_type":   n.CallType,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}

	msgID, err := c.client.Send(ctx, msg)
	if err == nil {
		c.logger.Debug().
			Str("token_tail", tokenTail(deviceToken)).
			Str("call_id", n.CallID).
			Str("message_id", msgID).
			Msg("FCM accepted call push")
		return push.Delivered
	}

	if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
		c.logger.Warn().Err(err).
			Str("token_tail", tokenTail(deviceToken)).
			Msg("FCM reports device token dead")
		return push.PermanentlyRejected
	}

	// Anything else is transport or service trouble and says nothing about
	// the token.
	c.logger.Warn().Err(err).
		Str("token_tail", tokenTail(deviceToken)).
		Str("call_id", n.CallID).
		Msg("FCM send failed")
	return push.AttemptFailed
}

// init builds the messaging client once. Failures leave c.client nil, which
// Send translates into Skipped; the warning fires a single time instead of
// on every call attempt.
func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.cfg.ServiceAccountPath == "" {
			c.logger.Warn().Msg("FCM service account not configured, Android call pushes disabled")
			return
		}

		ctx := context.Background()
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(c.cfg.ServiceAccountPath))
		if err != nil {
			c.logger.Warn().Err(err).
				Str("service_account_path", c.cfg.ServiceAccountPath).
				Msg("failed to initialize Firebase app, Android call pushes disabled")
			return
		}

		client, err := app.Messaging(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to create FCM messaging client, Android call pushes disabled")
			return
		}

		c.client = client
		c.logger.Info().Msg("FCM client initialized")
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
