package turn

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_KnownVector(t *testing.T) {
	svc := NewService(ServiceConfig{
		Secret: "s3cret-shared-with-coturn",
		Domain: "turn.veilchat.im",
	})
	// Pin the clock so the expiry, and with it the HMAC, is stable.
	svc.now = func() time.Time {
		return time.Unix(1700000000, 0).Add(-CredentialTTL)
	}

	creds := svc.Credentials("alice@veilchat.im")

	// Vector computed with coturn's own recipe:
	// base64(HMAC-SHA1(secret, "1700000000:alice")).
	assert.Equal(t, "1700000000:alice", creds.Username)
	assert.Equal(t, "ec52rBJeDidkTkFBhAuvx5R/4hM=", creds.Password)
}

func TestCredentials_Shape(t *testing.T) {
	svc := NewService(ServiceConfig{
		Secret: "s3cret-shared-with-coturn",
		Domain: "turn.veilchat.im",
	})

	before := time.Now().Add(CredentialTTL).Unix()
	creds := svc.Credentials("alice@veilchat.im")
	after := time.Now().Add(CredentialTTL).Unix()

	parts := strings.SplitN(creds.Username, ":", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "alice", parts[1], "the TURN username carries the localpart, never the full JID")

	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, expiry, before)
	assert.LessOrEqual(t, expiry, after)

	assert.Equal(t, 86400, creds.TTL)
	assert.Equal(t, []string{
		"turn:turn.veilchat.im:3478?transport=udp",
		"turn:turn.veilchat.im:3478?transport=tcp",
		"turns:turn.veilchat.im:5349?transport=tcp",
	}, creds.URIs)
}

func TestCredentials_DifferentUsersDifferentPasswords(t *testing.T) {
	svc := NewService(ServiceConfig{
		Secret: "s3cret-shared-with-coturn",
		Domain: "turn.veilchat.im",
	})
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	alice := svc.Credentials("alice@veilchat.im")
	bob := svc.Credentials("bob@veilchat.im")

	assert.NotEqual(t, alice.Password, bob.Password)
}
