package models

// TurnCredentials is a set of time-limited TURN relay credentials in the
// REST-API format coturn verifies against the shared secret.
type TurnCredentials struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	TTL      int      `json:"ttl"`
	URIs     []string `json:"uris"`
}
