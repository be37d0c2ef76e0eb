// Package account manages user accounts across the three systems that share
// them: Ejabberd owns XMPP authentication, Kamailio reads SIP digest
// credentials from the subscriber table, and the push registry tracks the
// account's devices. The API never stores a password itself; it forwards
// registration to Ejabberd and derives the SIP digests in passing.
package account

import (
	"crypto/md5" //nolint:gosec // SIP digest authentication (RFC 3261) is defined over MD5
	"encoding/hex"
)

// Subscriber is a Kamailio SIP credential row. Kamailio owns the table
// schema; this service only ever writes the digest columns and leaves the
// cleartext password column empty.
type Subscriber struct {
	Username string
	Domain   string

	// HA1 is md5(username:domain:password), the standard digest secret.
	HA1 string

	// HA1B is md5(username@domain:domain:password), used when Kamailio
	// authenticates against the full address form.
	HA1B string
}

// NewSubscriber derives the SIP digest hashes for an account. The cleartext
// password is consumed here and never persisted.
func NewSubscriber(username, domain, password string) *Subscriber {
	return &Subscriber{
		Username: username,
		Domain:   domain,
		HA1:      digest(username + ":" + domain + ":" + password),
		HA1B:     digest(username + "@" + domain + ":" + domain + ":" + password),
	}
}

func digest(input string) string {
	sum := md5.Sum([]byte(input)) //nolint:gosec // RFC 3261 interop, not password storage
	return hex.EncodeToString(sum[:])
}
