// Package ns provides XML namespace constants shared across the core
// packages.
package ns

// Core protocol namespaces.
const (
	Stream   = "http://etherx.jabber.org/streams"
	Client   = "jabber:client"
	XML      = "http://www.w3.org/XML/1998/namespace"
	Bind     = "urn:ietf:params:xml:ns:xmpp-bind"
	SASL     = "urn:ietf:params:xml:ns:xmpp-sasl"
	StartTLS = "urn:ietf:params:xml:ns:xmpp-tls"
	Stanzas  = "urn:ietf:params:xml:ns:xmpp-stanzas"

	// CompressFeature and CompressProtocol are the XEP-0138 namespaces.
	CompressFeature = "http://jabber.org/features/compress"
	CompressProtocol = "http://jabber.org/protocol/compress"

	// SM is the XEP-0198 stream management namespace.
	SM = "urn:xmpp:sm:3"

	// Ping is the XEP-0199 namespace.
	Ping = "urn:xmpp:ping"
)
