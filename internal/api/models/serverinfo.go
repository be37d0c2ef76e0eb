package models

// ServerInfo is the discovery document clients fetch on startup to locate
// the XMPP, SIP, TURN, and upload services.
type ServerInfo struct {
	XMPPDomain       string `json:"xmpp_domain"`
	XMPPHost         string `json:"xmpp_host"`
	XMPPPortTLS      int    `json:"xmpp_port_tls"`
	XMPPPortSTARTTLS int    `json:"xmpp_port_starttls"`
	XMPPWSURL        string `json:"xmpp_ws_url"`
	SIPDomain        string `json:"sip_domain"`
	SIPPortTLS       int    `json:"sip_port_tls"`
	TURNServer       string `json:"turn_server"`
	TURNServerTLS    string `json:"turn_server_tls"`
	HTTPUploadHost   string `json:"http_upload_host"`
	ServerVersion    string `json:"server_version"`
	MinClientVersion string `json:"min_client_version"`
}
