// Package sasl implements the SASL mechanisms a client needs to
// authenticate an XMPP stream per RFC 6120 §6: SCRAM-SHA-1(-PLUS),
// DIGEST-MD5, PLAIN, EXTERNAL, and ANONYMOUS.
//
// Unlike a generic SASL library, a Mechanism here keeps its scratch state on
// an explicit Session value rather than hiding it behind an opaque stepper:
// the stream state machine needs to read back the negotiated
// gs2-header/client-first-message-bare/server-signature to perform the
// XEP-0178 channel-binding verification and to diagnose a failed
// authentication, so that state has to be addressable, not buried.
package sasl

import "errors"

// Session holds the client-side scratch values accumulated while stepping
// through a mechanism's exchange. Not every mechanism reads every field;
// Authzid/Username/Password/Domain/BareJID are populated by the caller
// up front, the rest are filled in as a mechanism steps through its
// exchange.
type Session struct {
	// Authzid, Username and Password are supplied by the caller before the
	// exchange starts.
	Authzid  string
	Username string
	Password string

	// Domain is the origin JID's domainpart, DIGEST-MD5's fallback realm
	// when the server's challenge omits realm=.
	Domain string

	// BareJID is the origin JID's bare form (user@domain, no resource),
	// EXTERNAL's fallback identity when Authzid is empty.
	BareJID string

	// GS2Header is the gs2-header SCRAM prefixes onto its client-first
	// message; needed again when computing the channel-binding data.
	GS2Header string

	// ClientFirstMessageBare and ServerFirstMessage are the exact bytes
	// exchanged in SCRAM steps 1-2, retained because the SCRAM
	// AuthMessage is their concatenation plus the client-final-message-
	// without-proof.
	ClientFirstMessageBare string
	ServerFirstMessage     string

	// ServerSignature is the value the client must confirm in SCRAM's
	// final server message.
	ServerSignature []byte

	// CBindData is the channel-binding data (e.g. tls-server-end-point
	// certificate hash) supplied by the transport layer when a -PLUS
	// variant is in use.
	CBindData []byte

	step int
}

// Mechanism implements one SASL mechanism's client side. Start produces the
// initial response (nil for mechanisms that send none); Next is then called
// once per subsequent challenge from the server. A mechanism signals it is
// done by returning done=true.
type Mechanism interface {
	Name() string
	Start(s *Session) (response []byte, err error)
	Next(s *Session, challenge []byte) (response []byte, done bool, err error)
}

// ErrAborted is returned by a Mechanism when the exchange cannot continue
// because the server's challenge was invalid or the negotiated outcome
// could not be verified (e.g. a SCRAM server-signature mismatch).
var ErrAborted = errors.New("sasl: exchange aborted")

// registry is the set of mechanisms this module knows how to speak,
// ordered from strongest to weakest so callers can pick the first one the
// server also advertises.
var registry = []Mechanism{
	ScramSHA1Plus{},
	ScramSHA1{},
	DigestMD5{},
	External{},
	Plain{},
	Anonymous{},
}

// Negotiate picks the strongest mechanism present in both offered (the
// names the server advertised) and the mechanisms this module implements.
// requireChannelBinding restricts the choice to a -PLUS mechanism, for use
// when the transport negotiated a TLS channel-binding type; without it,
// -PLUS mechanisms are skipped.
func Negotiate(offered []string, requireChannelBinding bool) Mechanism {
	set := make(map[string]bool, len(offered))
	for _, m := range offered {
		set[m] = true
	}
	for _, m := range registry {
		cb, ok := m.(interface{ bindsChannel() bool })
		if binds := ok && cb.bindsChannel(); binds != requireChannelBinding {
			continue
		}
		if set[m.Name()] {
			return m
		}
	}
	return nil
}
