package xmpp

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"golang.org/x/text/language"

	"git.sr.ht/~coredump/xmppcore/jid"
)

// TLSPolicy controls whether and when a session requires STARTTLS.
type TLSPolicy int

const (
	// TLSDisabled never negotiates STARTTLS even if the server offers it.
	TLSDisabled TLSPolicy = iota
	// TLSOptional upgrades to TLS when offered but proceeds in the clear
	// otherwise.
	TLSOptional
	// TLSRequired disconnects with TLSFailed if the server never offers
	// STARTTLS.
	TLSRequired
)

// Config is the immutable configuration of one XMPP endpoint, supplied when
// constructing a Session and consulted throughout its lifetime (including
// across reconnects, per spec's "SessionContext persists across
// reconnects").
type Config struct {
	// Origin is the JID this session authenticates as.
	Origin *jid.JID

	// Authzid is the SASL authorization identity; when empty, the
	// mechanism's default (usually the authentication identity) is used.
	Authzid string

	// Password authenticates Origin.
	Password string

	// ClientKey and ClientCerts present a client certificate for
	// EXTERNAL/TLS mutual auth; CACerts overrides the system root pool.
	ClientKey   *tls.Certificate
	ClientCerts []*x509.Certificate
	CACerts     *x509.CertPool

	// Server and Port are the TCP endpoint to dial. Port defaults to 5222.
	Server string
	Port   int

	// DefaultNS is the stream's default namespace, "jabber:client" for a
	// standard client connection.
	DefaultNS string

	// Lang is the stream's default xml:lang.
	Lang language.Tag

	// TLSPolicy controls STARTTLS negotiation.
	TLSPolicy TLSPolicy

	// SASLEnabled and CompressEnabled gate the corresponding optional
	// stream features; both default true through DefaultConfig.
	SASLEnabled     bool
	CompressEnabled bool

	// ConnectTimeout bounds the initial TCP dial.
	ConnectTimeout time.Duration
}

// DefaultConfig fills in the fields a client connection almost always
// wants: port 5222, jabber:client, English, TLS required, SASL and
// compression both enabled.
func DefaultConfig(origin *jid.JID, password string) Config {
	return Config{
		Origin:          origin,
		Password:        password,
		Port:            5222,
		DefaultNS:       "jabber:client",
		Lang:            language.English,
		TLSPolicy:       TLSRequired,
		SASLEnabled:     true,
		CompressEnabled: true,
		ConnectTimeout:  30 * time.Second,
	}
}

// tlsConfig builds the *tls.Config a STARTTLS handshake should use.
func (c Config) tlsConfig() *tls.Config {
	cfg := &tls.Config{
		ServerName: c.Origin.Domain(),
		RootCAs:    c.CACerts,
	}
	if c.ClientKey != nil {
		cfg.Certificates = []tls.Certificate{*c.ClientKey}
	}
	return cfg
}
