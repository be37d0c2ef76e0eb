// Package registry stores device push registrations keyed by account JID.
// One account may hold several registrations, one per device; the call
// dispatcher reads them to fan out VoIP pushes and prunes the ones the
// providers report as permanently dead.
package registry

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no registration matches the key.
var ErrNotFound = errors.New("push registration not found")

// Platform routes a registration to its push provider.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Registration is one device's push identity for an account.
type Registration struct {
	JID          string
	DeviceID     string
	Platform     Platform
	PushToken    string
	AppID        string
	RegisteredAt time.Time
}

// TokenLast4 returns the tail of the push token for display purposes.
func (r *Registration) TokenLast4() string {
	if len(r.PushToken) < 4 {
		return r.PushToken
	}
	return r.PushToken[len(r.PushToken)-4:]
}
