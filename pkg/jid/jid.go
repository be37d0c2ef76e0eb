// Package jid provides helpers for working with bare XMPP addresses (JIDs).
// A bare JID has the form "localpart@domain"; a full JID appends "/resource".
package jid

import (
	"regexp"
	"strings"
)

// localpartPattern matches the account names this deployment issues. Ejabberd
// and Kamailio both key on the localpart, so the charset is restricted to
// characters valid in SIP digest usernames as well.
var localpartPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// Compose builds a bare JID from a localpart and a domain.
func Compose(localpart, domain string) string {
	return localpart + "@" + domain
}

// Bare strips any resource suffix, turning "alice@example.com/phone" into
// "alice@example.com". A bare JID is returned unchanged.
func Bare(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// Localpart returns the part before the first "@". If the input has no "@",
// the whole string is returned, matching how SIP usernames are handled.
func Localpart(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}

// Domain returns the part after the first "@" with any resource stripped,
// or "" if the input has no "@".
func Domain(jid string) string {
	i := strings.IndexByte(jid, '@')
	if i < 0 {
		return ""
	}
	return Bare(jid[i+1:])
}

// ValidLocalpart reports whether s is an acceptable account name:
// 3-32 characters from [a-zA-Z0-9_].
func ValidLocalpart(s string) bool {
	return localpartPattern.MatchString(s)
}
