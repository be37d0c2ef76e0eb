// Package turn mints time-limited TURN relay credentials. The TURN server
// and this API never talk to each other; they share one secret, and the
// server recomputes the HMAC to verify a credential. The scheme is the TURN
// REST API draft (draft-uberti-behave-turn-rest) as implemented by coturn's
// use-auth-secret mode.
package turn

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the TURN REST credential scheme is defined over HMAC-SHA1
	"encoding/base64"
	"strconv"
	"time"

	"github.com/veilchat/veilchat/internal/api/models"
	"github.com/veilchat/veilchat/pkg/jid"
)

// CredentialTTL is how long issued relay credentials remain valid. It
// matches the API token lifetime so one login session needs one credential
// fetch.
const CredentialTTL = 24 * time.Hour

// ServiceConfig holds the TURN deployment parameters.
type ServiceConfig struct {
	// Secret is the static-auth-secret shared with the TURN server.
	Secret string

	// Domain is the TURN server's public hostname.
	Domain string
}

// Service issues ephemeral TURN credentials.
type Service struct {
	secret []byte
	domain string
	now    func() time.Time
}

// NewService creates a new TURN credential service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		secret: []byte(cfg.Secret),
		domain: cfg.Domain,
		now:    time.Now,
	}
}

// Credentials mints a credential set for the caller. The username embeds the
// expiry timestamp and the account's localpart; the password is the HMAC the
// TURN server will recompute. Plain UDP and TCP relay runs on 3478, TLS on
// 5349.
func (s *Service) Credentials(callerJID string) *models.TurnCredentials {
	expiry := s.now().Add(CredentialTTL).Unix()
	username := strconv.FormatInt(expiry, 10) + ":" + jid.Localpart(callerJID)

	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return &models.TurnCredentials{
		Username: username,
		Password: password,
		TTL:      int(CredentialTTL.Seconds()),
		URIs: []string{
			"turn:" + s.domain + ":3478?transport=udp",
			"turn:" + s.domain + ":3478?transport=tcp",
			"turns:" + s.domain + ":5349?transport=tcp",
		},
	}
}
