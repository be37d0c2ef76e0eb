// Package push fans incoming-call notifications out to every device a user
// has registered. Apple and Google transports live in subpackages; this
// package owns the dispatch loop, the outcome bookkeeping, and the cleanup
// of registrations the providers have condemned.
package push

import "context"

// Notification is the wake-up payload for one incoming call. It carries only
// what the callee's device needs to ring: who is calling, which call to
// attach to, and whether to present audio or video UI. Message content never
// travels through the push providers; the client fetches state over XMPP
// once it wakes.
type Notification struct {
	CallerName string
	CallID     string
	CallType   string
}

// DeliveryOutcome classifies the result of one send attempt to one device.
type DeliveryOutcome string

const (
	// Delivered means the provider accepted the notification.
	Delivered DeliveryOutcome = "delivered"

	// PermanentlyRejected means the provider explicitly reported the device
	// token as dead. The registration behind it is stale and gets removed.
	PermanentlyRejected DeliveryOutcome = "permanently_rejected"

	// Skipped means no provider is configured for the device's platform, so
	// no attempt was made.
	Skipped DeliveryOutcome = "skipped"

	// AttemptFailed means the attempt did not complete: a transport error, a
	// timeout, or a provider-side outage. The token may still be good, so
	// the registration is kept.
	AttemptFailed DeliveryOutcome = "attempt_failed"
)

// Client sends one call notification to one device token.
type Client interface {
	// Name identifies the provider in logs and operational reporting,
	// for example "apns" or "fcm".
	Name() string

	// Configured reports whether the provider has usable credentials.
	// Unconfigured clients answer every Send with Skipped.
	Configured() bool

	// Send attempts delivery and classifies the result. Transport trouble
	// must map to AttemptFailed; PermanentlyRejected is reserved for the
	// provider explicitly condemning the token itself.
	Send(ctx context.Context, deviceToken string, n Notification) DeliveryOutcome
}
