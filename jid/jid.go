// Package jid implements the XMPP address format (Jabber ID) described by
// RFC 7622: a node, a domain, and an optional resource.
package jid

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// JID represents an XMPP address. All parts are held in their normalized
// form; comparison between two JIDs is an octet-for-octet comparison of
// the normalized representation.
type JID struct {
	nodelen   int
	domainlen int
	data      []byte
}

// Parse constructs a new JID from its string form ("node@domain/resource").
func Parse(s string) (*JID, error) {
	node, domain, resource, err := Split(s)
	if err != nil {
		return nil, err
	}
	return New(node, domain, resource)
}

// MustParse is like Parse but panics on error. It is intended for use with
// constant strings known at compile time.
func MustParse(s string) *JID {
	j, err := Parse(s)
	if err != nil {
		panic("jid: MustParse(" + s + "): " + err.Error())
	}
	return j
}

// New builds a JID from its three constituent parts, normalizing each.
func New(node, domain, resource string) (*JID, error) {
	if !utf8.ValidString(node) || !utf8.ValidString(resource) {
		return nil, errors.New("jid: part is not valid UTF-8")
	}

	domain, err := idna.ToUnicode(strings.TrimRight(domain, "."))
	if err != nil {
		return nil, err
	}
	if !utf8.ValidString(domain) {
		return nil, errors.New("jid: domain is not valid UTF-8")
	}

	var nodelen int
	data := make([]byte, 0, len(node)+len(domain)+len(resource))

	if node != "" {
		data, err = precis.UsernameCaseMapped.Append(data, []byte(node))
		if err != nil {
			return nil, err
		}
		nodelen = len(data)
	}

	data = append(data, domain...)

	if resource != "" {
		data, err = precis.OpaqueString.Append(data, []byte(resource))
		if err != nil {
			return nil, err
		}
	}

	if err := validate(data[:nodelen], domain, data[nodelen+len(domain):]); err != nil {
		return nil, err
	}

	return &JID{nodelen: nodelen, domainlen: len(domain), data: data}, nil
}

// Split divides the string representation of a JID into its node, domain,
// and resource parts without validating or normalizing them.
func Split(s string) (node, domain, resource string, err error) {
	// RFC 7622 §3.1: match separators before any normalization that might
	// decompose a code point into '@' or '/'.
	if i := strings.IndexByte(s, '/'); i >= 0 {
		if i == len(s)-1 {
			return "", "", "", errors.New("jid: empty resourcepart")
		}
		resource, s = s[i+1:], s[:i]
	}

	switch i := strings.IndexByte(s, '@'); i {
	case -1:
		domain = s
	case 0:
		return "", "", "", errors.New("jid: empty localpart")
	default:
		node, domain = s[:i], s[i+1:]
	}

	domain = strings.TrimSuffix(domain, ".")
	return node, domain, resource, nil
}

func validate(node []byte, domain string, resource []byte) error {
	if len(node) > 1023 {
		return errors.New("jid: localpart exceeds 1023 bytes")
	}
	if bytes.ContainsAny(node, `"&'/:<>@`) {
		return errors.New("jid: localpart contains forbidden characters")
	}
	if len(resource) > 1023 {
		return errors.New("jid: resourcepart exceeds 1023 bytes")
	}
	if l := len(domain); l < 1 || l > 1023 {
		return errors.New("jid: domainpart must be between 1 and 1023 bytes")
	}
	if strings.HasPrefix(domain, "[") && strings.HasSuffix(domain, "]") {
		if ip := net.ParseIP(domain[1 : len(domain)-1]); ip == nil || ip.To4() != nil {
			return errors.New("jid: domainpart is not a valid IPv6 literal")
		}
	}
	return nil
}

// Node returns the localpart of the JID (the part before '@'), or the empty
// string if there is none.
func (j *JID) Node() string {
	if j == nil {
		return ""
	}
	return string(j.data[:j.nodelen])
}

// Domain returns the domainpart of the JID.
func (j *JID) Domain() string {
	if j == nil {
		return ""
	}
	return string(j.data[j.nodelen : j.nodelen+j.domainlen])
}

// Resource returns the resourcepart of the JID, or the empty string if
// there is none.
func (j *JID) Resource() string {
	if j == nil {
		return ""
	}
	return string(j.data[j.nodelen+j.domainlen:])
}

// WithResource returns a copy of the JID's bare form with a new resource.
func (j *JID) WithResource(resource string) (*JID, error) {
	return New(j.Node(), j.Domain(), resource)
}

// Bare returns a copy of the JID with the resourcepart removed.
func (j *JID) Bare() *JID {
	if j == nil {
		return nil
	}
	return &JID{
		nodelen:   j.nodelen,
		domainlen: j.domainlen,
		data:      j.data[:j.nodelen+j.domainlen],
	}
}

// DomainJID returns a copy of the JID containing only the domainpart.
func (j *JID) DomainJID() *JID {
	if j == nil {
		return nil
	}
	return &JID{
		domainlen: j.domainlen,
		data:      j.data[j.nodelen : j.nodelen+j.domainlen],
	}
}

// IsBare reports whether the JID has no resourcepart.
func (j *JID) IsBare() bool {
	return j != nil && j.Resource() == ""
}

// String returns the full string form of the JID: "[node@]domain[/resource]".
func (j *JID) String() string {
	if j == nil {
		return ""
	}
	var b strings.Builder
	if j.nodelen > 0 {
		b.Write(j.data[:j.nodelen])
		b.WriteByte('@')
	}
	b.Write(j.data[j.nodelen : j.nodelen+j.domainlen])
	if res := j.data[j.nodelen+j.domainlen:]; len(res) > 0 {
		b.WriteByte('/')
		b.Write(res)
	}
	return b.String()
}

// Equal performs an octet-for-octet comparison of the normalized JIDs.
func (j *JID) Equal(other *JID) bool {
	if j == nil || other == nil {
		return j == other
	}
	return j.nodelen == other.nodelen &&
		j.domainlen == other.domainlen &&
		bytes.Equal(j.data, other.data)
}

// Copy returns a deep copy of the JID.
func (j *JID) Copy() *JID {
	if j == nil {
		return nil
	}
	data := make([]byte, len(j.data))
	copy(data, j.data)
	return &JID{nodelen: j.nodelen, domainlen: j.domainlen, data: data}
}

// MarshalXMLAttr satisfies xml.MarshalerAttr.
func (j *JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j == nil {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		return nil
	}
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = *parsed
	return nil
}

// Network satisfies net.Addr.
func (*JID) Network() string { return "xmpp" }
