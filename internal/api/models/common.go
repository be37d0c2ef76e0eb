// Package models provides request and response models for the Veil API.
// Wire field names use snake_case to match the contract the mobile clients
// and the Kamailio webhook already speak.
package models

import "time"

// Platform identifies the push transport a device registered with.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Valid reports whether the platform is one the API accepts.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// CallType distinguishes audio from video call invitations.
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Valid reports whether the call type is one the API accepts.
func (c CallType) Valid() bool {
	return c == CallTypeAudio || c == CallTypeVideo
}

// Affiliation is a MUC room affiliation as Ejabberd reports it.
type Affiliation string

const (
	AffiliationOwner  Affiliation = "owner"
	AffiliationMember Affiliation = "member"
	AffiliationNone   Affiliation = "none"
)

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// StatusResponse is the bare acknowledgement body several write endpoints
// return.
type StatusResponse struct {
	Status string `json:"status"`
}

// StatusResponse values.
const (
	StatusRegistered   = "registered"
	StatusDeregistered = "deregistered"
	StatusDeleted      = "deleted"
	StatusOK           = "ok"
)

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	// Remove quotes
	s := string(data[1 : len(data)-1])
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
