// Package stream implements the XMPP stream-level primitives: the
// "Major.Minor" version attribute and the <stream:error/> taxonomy defined
// by RFC 6120 §4.9.
package stream

import (
	"fmt"
	"io"
	"net"
	"strings"

	"git.sr.ht/~coredump/xmppcore/internal/ns"
)

var stringsReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Error is a fatal, stream-level error condition. Receiving one, or having
// one returned from an operation, always means the stream is about to be
// (or already was) torn down.
type Error struct {
	// Condition is the RFC 6120 §4.9.3 local name of the error element, e.g.
	// "bad-format" or "see-other-host".
	Condition string

	// Text is the optional human readable description carried in a <text/>
	// child, keyed by xml:lang ("default" for the entry with no lang).
	Text map[string]string

	// Payload is the raw character data of an application-specific or
	// see-other-host payload, if any.
	Payload string
}

// A list of stream errors defined in RFC 6120 §4.9.3.
var (
	BadFormat              = Error{Condition: "bad-format"}
	BadNamespacePrefix     = Error{Condition: "bad-namespace-prefix"}
	Conflict               = Error{Condition: "conflict"}
	ConnectionTimeout      = Error{Condition: "connection-timeout"}
	HostGone               = Error{Condition: "host-gone"}
	HostUnknown            = Error{Condition: "host-unknown"}
	ImproperAddressing     = Error{Condition: "improper-addressing"}
	InternalServerError    = Error{Condition: "internal-server-error"}
	InvalidFrom            = Error{Condition: "invalid-from"}
	InvalidID              = Error{Condition: "invalid-id"}
	InvalidNamespace       = Error{Condition: "invalid-namespace"}
	InvalidXML             = Error{Condition: "invalid-xml"}
	NotAuthorized          = Error{Condition: "not-authorized"}
	PolicyViolation        = Error{Condition: "policy-violation"}
	RemoteConnectionFailed = Error{Condition: "remote-connection-failed"}
	ResourceConstraint     = Error{Condition: "resource-constraint"}
	RestrictedXML          = Error{Condition: "restricted-xml"}
	SystemShutdown         = Error{Condition: "system-shutdown"}
	UndefinedCondition     = Error{Condition: "undefined-condition"}
	UnsupportedEncoding    = Error{Condition: "unsupported-encoding"}
	UnsupportedStanzaType  = Error{Condition: "unsupported-stanza-type"}
	UnsupportedVersion     = Error{Condition: "unsupported-version"}
	XMLNotWellFormed       = Error{Condition: "not-well-formed"}
	Undefined              = Error{Condition: ""}
)

// SeeOtherHost builds a see-other-host error pointing at addr. If addr looks
// like a bare IPv6 literal it is wrapped in brackets per RFC 6120 §4.9.3.19.
func SeeOtherHost(addr net.Addr) Error {
	host := addr.String()
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	return Error{Condition: "see-other-host", Payload: host}
}

// Error satisfies the error interface, returning the condition name.
func (e Error) Error() string {
	if e.Condition == "" {
		return "undefined-condition"
	}
	return e.Condition
}

// WriteXML serializes the error as a <stream:error/> element directly onto
// w. Like the stream-open preamble, this is written by hand rather than
// through an XML encoder: the "stream" prefix and well-known condition names
// never need escaping, and direct writes avoid round-tripping through
// encoding/xml for a handful of fixed elements.
func (e Error) WriteXML(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, `<error xmlns='%s'><%s xmlns='%s'/>`, ns.Stream, e.Condition, ns.Stanzas)
	total := int64(n)
	if err != nil {
		return total, err
	}
	for lang, text := range e.Text {
		var m int
		if lang == "" || lang == "default" {
			m, err = fmt.Fprintf(w, `<text xmlns='%s'>%s</text>`, ns.Stanzas, escapeText(text))
		} else {
			m, err = fmt.Fprintf(w, `<text xmlns='%s' xml:lang='%s'>%s</text>`, ns.Stanzas, lang, escapeText(text))
		}
		total += int64(m)
		if err != nil {
			return total, err
		}
	}
	m, err := fmt.Fprint(w, `</error>`)
	return total + int64(m), err
}

func escapeText(s string) string {
	r := stringsReplacer
	return r.Replace(s)
}
