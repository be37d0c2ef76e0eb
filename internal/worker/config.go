// Package worker provides the background loops for the Veil backend: a
// Pub/Sub call-event subscriber feeding the push dispatcher and a periodic
// sweep that purges long-dead push registrations.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the worker loops.
type Config struct {
	// SweepInterval is how often the registration sweep runs.
	// Default: 24 hours.
	SweepInterval time.Duration

	// Retention is how long a registration may go without a refresh before
	// the sweep removes it. Devices that fell off the provider's radar
	// without ever earning an explicit token rejection age out here.
	// Default: 90 days.
	Retention time.Duration

	// ProjectID is the Google Cloud project the call-event subscription
	// lives in. Empty disables the subscriber; the sweep still runs.
	ProjectID string

	// SubscriptionName is the Pub/Sub subscription carrying call events
	// from signaling hosts that cannot reach the webhook directly.
	SubscriptionName string
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval:    24 * time.Hour,
		Retention:        90 * 24 * time.Hour,
		SubscriptionName: "call-events-sub",
	}
}

// ConfigFromEnv loads worker configuration from the environment, falling
// back to defaults for anything unset or unparsable.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("WORKER_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("PUSH_REGISTRATION_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Retention = time.Duration(days) * 24 * time.Hour
		}
	}
	cfg.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	if v := os.Getenv("PUBSUB_CALL_EVENTS_SUBSCRIPTION"); v != "" {
		cfg.SubscriptionName = v
	}

	return cfg
}
