package stream

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"git.sr.ht/~coredump/xmppcore/internal/attr"
	"git.sr.ht/~coredump/xmppcore/internal/ns"
)

// Header is the literal XML declaration sent before every stream open, as
// required by RFC 6120 §4.8.1 (always UTF-8, no trailing newline).
const Header = `<?xml version='1.0' ?>`

// Info holds the attributes of a <stream:stream> open tag, whichever side
// sent it.
type Info struct {
	ID      string
	To      string
	From    string
	Version Version
	Lang    string
}

// WriteOpen writes a fresh XML prolog and <stream:stream> open tag to w, the
// literal form given in spec §6. It is written by hand, not through an
// xml.Encoder: the encoder rejects namespaced attributes like
// "xmlns:stream" and the header never varies enough to need one.
func WriteOpen(w io.Writer, to, defaultNS, lang string) (Info, error) {
	info := Info{To: to, Version: DefaultVersion, Lang: lang}
	_, err := fmt.Fprintf(w,
		Header+`<stream:stream to='%s' xmlns='%s' xmlns:stream='%s' xml:lang='%s' version='%s'>`,
		xmlEscapeAttr(to), defaultNS, ns.Stream, xmlEscapeAttr(lang), DefaultVersion,
	)
	return info, err
}

// ParseOpenAttrs extracts stream Info from the attribute list of a
// <stream:stream> start tag. It does not look at the element name or
// namespace; the caller (the dispatcher, which owns Tag parsing) is
// responsible for confirming this was in fact a stream open.
func ParseOpenAttrs(attrs []xml.Attr) (Info, error) {
	var info Info
	for _, a := range attrs {
		switch a.Name.Local {
		case "id":
			info.ID = a.Value
		case "from":
			info.From = a.Value
		case "to":
			info.To = a.Value
		case "version":
			if a.Value == "" {
				return info, UnsupportedVersion
			}
			v, err := ParseVersion(a.Value)
			if err != nil {
				return info, UnsupportedVersion
			}
			info.Version = v
		case "lang":
			info.Lang = a.Value
		}
	}
	if info.Version == (Version{}) {
		// The 'version' attribute was entirely absent: RFC 6120 §4.7.5
		// requires it, and spec scenario 2 requires a hard disconnect here.
		return info, UnsupportedVersion
	}
	if info.Version.Major < 1 {
		return info, UnsupportedVersion
	}
	return info, nil
}

// RandomID returns a new random stream identifier (8 random bytes as 16 hex
// characters), used only by a
// receiving (server) role; clients always take the ID the server assigns.
func RandomID() string {
	return attr.RandomHex(8)
}

func xmlEscapeAttr(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
