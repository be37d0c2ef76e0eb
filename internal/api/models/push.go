package models

import "github.com/veilchat/veilchat/pkg/jid"

// PushRegisterRequest registers a device push token for call delivery.
type PushRegisterRequest struct {
	JID       string   `json:"jid"`
	DeviceID  string   `json:"device_id"`
	Platform  Platform `json:"platform"`
	PushToken string   `json:"push_token"`
	AppID     string   `json:"app_id"`
}

// Validate checks the push registration input.
func (r *PushRegisterRequest) Validate() []FieldError {
	var errs []FieldError
	if r.JID == "" {
		errs = append(errs, FieldError{Field: "jid", Message: "is required"})
	}
	if r.DeviceID == "" {
		errs = append(errs, FieldError{Field: "device_id", Message: "is required"})
	}
	if !r.Platform.Valid() {
		errs = append(errs, FieldError{Field: "platform", Message: "must be ios or android"})
	}
	if r.PushToken == "" {
		errs = append(errs, FieldError{Field: "push_token", Message: "is required"})
	}
	if r.AppID == "" {
		errs = append(errs, FieldError{Field: "app_id", Message: "is required"})
	}
	return errs
}

// PushDeregisterRequest removes a device push token.
type PushDeregisterRequest struct {
	JID      string `json:"jid"`
	DeviceID string `json:"device_id"`
}

// Validate checks the deregistration input.
func (r *PushDeregisterRequest) Validate() []FieldError {
	var errs []FieldError
	if r.JID == "" {
		errs = append(errs, FieldError{Field: "jid", Message: "is required"})
	}
	if r.DeviceID == "" {
		errs = append(errs, FieldError{Field: "device_id", Message: "is required"})
	}
	return errs
}

// Device is the registration view returned by the me endpoint. The raw push
// token never leaves the server; only its tail is echoed for support triage.
type Device struct {
	DeviceID     string    `json:"device_id"`
	Platform     Platform  `json:"platform"`
	AppID        string    `json:"app_id"`
	TokenLast4   string    `json:"token_last4"`
	RegisteredAt Timestamp `json:"registered_at"`
}

// CallNotifyRequest is the body of the call-setup webhook Kamailio posts
// when a callee has no active SIP registration. The webhook arrives over
// the internal network and carries no bearer token.
type CallNotifyRequest struct {
	CalleeUsername    string   `json:"callee_username"`
	CallerUsername    string   `json:"caller_username"`
	CallerDisplayName string   `json:"caller_display_name"`
	CallID            string   `json:"call_id"`
	CallType          CallType `json:"call_type"`
}

// Validate checks the webhook input. An empty call_type is allowed and
// defaults to audio before dispatch.
func (r *CallNotifyRequest) Validate() []FieldError {
	var errs []FieldError
	if r.CalleeUsername == "" {
		errs = append(errs, FieldError{Field: "callee_username", Message: "is required"})
	} else if !jid.ValidLocalpart(r.CalleeUsername) {
		errs = append(errs, FieldError{Field: "callee_username", Message: "must be 3-32 characters of letters, digits, or underscore"})
	}
	if r.CallerUsername == "" {
		errs = append(errs, FieldError{Field: "caller_username", Message: "is required"})
	} else if !jid.ValidLocalpart(r.CallerUsername) {
		errs = append(errs, FieldError{Field: "caller_username", Message: "must be 3-32 characters of letters, digits, or underscore"})
	}
	if r.CallID == "" {
		errs = append(errs, FieldError{Field: "call_id", Message: "is required"})
	}
	if r.CallType != "" && !r.CallType.Valid() {
		errs = append(errs, FieldError{Field: "call_type", Message: "must be audio or video"})
	}
	return errs
}

// CallerName returns the display name to surface in the push payload,
// falling back to the caller's username when no display name was sent.
func (r *CallNotifyRequest) CallerName() string {
	if r.CallerDisplayName != "" {
		return r.CallerDisplayName
	}
	return r.CallerUsername
}

// CallNotifyResponse statuses.
const (
	CallNotifyStatusSent            = "sent"
	CallNotifyStatusNoRegistrations = "no_registrations"
	CallNotifyStatusDisabled        = "push_disabled"
)

// CallNotifyResponse summarizes a webhook fan-out.
type CallNotifyResponse struct {
	Status string `json:"status"`
	Sent   int    `json:"sent"`
}
