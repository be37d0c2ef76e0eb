// Package serverinfo assembles the discovery document clients fetch on
// startup to locate the XMPP, SIP, TURN, and HTTP upload services. The
// document is static per deployment; everything in it comes from the
// environment.
package serverinfo

import (
	"fmt"
	"os"

	"github.com/veilchat/veilchat/internal/api/models"
)

// Well-known ports. These are fixed by the bundled Ejabberd, Kamailio,
// and coturn configs and are not independently tunable.
const (
	xmppPortTLS      = 5223
	xmppPortSTARTTLS = 5222
	xmppWSPort       = 5280
	sipPortTLS       = 5061
	turnPort         = 3478
	turnPortTLS      = 5349
)

// Config holds the endpoint layout advertised to clients.
type Config struct {
	XMPPDomain       string
	XMPPHost         string
	XMPPWSURL        string
	SIPDomain        string
	TURNDomain       string
	HTTPUploadDomain string
	ServerVersion    string
	MinClientVersion string
}

// ConfigFromEnv loads the advertised endpoints from the environment.
// Unset hosts derive from XMPP_DOMAIN, so a single variable yields a
// coherent document for the standard deployment layout.
func ConfigFromEnv() Config {
	domain := getEnvOrDefault("XMPP_DOMAIN", "veilchat.im")
	host := getEnvOrDefault("XMPP_HOST", "xmpp."+domain)

	return Config{
		XMPPDomain:       domain,
		XMPPHost:         host,
		XMPPWSURL:        getEnvOrDefault("XMPP_WS_URL", fmt.Sprintf("ws://%s:%d/ws", host, xmppWSPort)),
		SIPDomain:        getEnvOrDefault("SIP_DOMAIN", "sip."+domain),
		TURNDomain:       getEnvOrDefault("TURN_DOMAIN", "turn."+domain),
		HTTPUploadDomain: getEnvOrDefault("HTTP_UPLOAD_DOMAIN", "upload."+domain),
		ServerVersion:    getEnvOrDefault("SERVER_VERSION", "1.0.0"),
		MinClientVersion: getEnvOrDefault("MIN_CLIENT_VERSION", "1.0.0"),
	}
}

// Service renders the discovery document.
type Service struct {
	cfg Config
}

// NewService creates a server info service.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Info returns the discovery document.
func (s *Service) Info() models.ServerInfo {
	return models.ServerInfo{
		XMPPDomain:       s.cfg.XMPPDomain,
		XMPPHost:         s.cfg.XMPPHost,
		XMPPPortTLS:      xmppPortTLS,
		XMPPPortSTARTTLS: xmppPortSTARTTLS,
		XMPPWSURL:        s.cfg.XMPPWSURL,
		SIPDomain:        s.cfg.SIPDomain,
		SIPPortTLS:       sipPortTLS,
		TURNServer:       fmt.Sprintf("%s:%d", s.cfg.TURNDomain, turnPort),
		TURNServerTLS:    fmt.Sprintf("%s:%d", s.cfg.TURNDomain, turnPortTLS),
		HTTPUploadHost:   s.cfg.HTTPUploadDomain,
		ServerVersion:    s.cfg.ServerVersion,
		MinClientVersion: s.cfg.MinClientVersion,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
