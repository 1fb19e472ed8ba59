// Package stanza implements the XMPP data model described by RFC 6120 §8 and
// RFC 6121: a generic XML element tree (Tag), the three stanza kinds built
// on top of it (IQ, Message, Presence, plus the Subscription presence
// subtype), and the stanza-level error taxonomy.
package stanza

import (
	"encoding/xml"
	"io"

	"git.sr.ht/~coredump/xmppcore/internal/attr"
)

// Tag is a single XML element: a name, a namespace, an ordered attribute
// list, an ordered list of children, and any character data found as a
// direct child. It is the unit the parser hands to the dispatcher and that
// the sender hands to the transform chain.
type Tag struct {
	Name     string
	XMLNS    string
	Attr     []xml.Attr
	Children []*Tag
	CData    string
}

// NewTag constructs an empty tag with the given name and namespace.
func NewTag(name, xmlns string) *Tag {
	return &Tag{Name: name, XMLNS: xmlns}
}

// GetAttr returns the value of attribute local, or "" if absent.
func (t *Tag) GetAttr(local string) string {
	if t == nil {
		return ""
	}
	return attr.Get(t.Attr, local)
}

// SetAttr sets (or replaces) an attribute.
func (t *Tag) SetAttr(local, value string) *Tag {
	for i, a := range t.Attr {
		if a.Name.Local == local {
			t.Attr[i].Value = value
			return t
		}
	}
	t.Attr = append(t.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: value})
	return t
}

// AddChild appends a child tag and returns it for chaining.
func (t *Tag) AddChild(c *Tag) *Tag {
	t.Children = append(t.Children, c)
	return t
}

// FindChild returns the first direct child matching name (and xmlns, if
// xmlns is non-empty), or nil.
func (t *Tag) FindChild(name, xmlns string) *Tag {
	if t == nil {
		return nil
	}
	for _, c := range t.Children {
		if c.Name == name && (xmlns == "" || c.XMLNS == xmlns) {
			return c
		}
	}
	return nil
}

// ReadTag parses exactly one element tree, rooted at start, from d. It is
// the sole bridge between the raw token stream produced by the transform
// chain's XML decoder and the Tag trees the rest of the core operates on.
func ReadTag(d *xml.Decoder, start xml.StartElement) (*Tag, error) {
	t := &Tag{Name: start.Name.Local, XMLNS: start.Name.Space, Attr: start.Attr}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			child, err := ReadTag(d, tok)
			if err != nil {
				return nil, err
			}
			t.Children = append(t.Children, child)
		case xml.CharData:
			t.CData += string(tok)
		case xml.EndElement:
			return t, nil
		}
	}
}

// WriteTo serializes the tag (and its descendants) as XML onto w. Like the
// stream open/close preamble, stanzas are written by hand rather than
// through an xml.Encoder: namespace inheritance for jabber:client children
// and the mixture of fixed protocol elements with arbitrary extension
// payloads make the stdlib encoder awkward here, and direct writes let the
// sender measure exactly what went out for the stream-management byte
// count.
func (t *Tag) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	t.encode(cw)
	return cw.n, cw.err
}

// String returns the tag's XML serialization, or "" if serialization fails.
func (t *Tag) String() string {
	var b stringsBuilder
	t.encode(&b)
	return b.String()
}

func (t *Tag) encode(w xmlWriter) {
	w.WriteByte('<')
	w.WriteString(t.Name)
	if t.XMLNS != "" {
		w.WriteString(` xmlns='`)
		w.WriteString(escapeAttr(t.XMLNS))
		w.WriteByte('\'')
	}
	for _, a := range t.Attr {
		if a.Name.Local == "xmlns" {
			continue
		}
		w.WriteByte(' ')
		if a.Name.Space != "" {
			w.WriteString(a.Name.Space)
			w.WriteByte(':')
		}
		w.WriteString(a.Name.Local)
		w.WriteString(`='`)
		w.WriteString(escapeAttr(a.Value))
		w.WriteByte('\'')
	}
	if len(t.Children) == 0 && t.CData == "" {
		w.WriteString("/>")
		return
	}
	w.WriteByte('>')
	w.WriteString(escapeText(t.CData))
	for _, c := range t.Children {
		c.encode(w)
	}
	w.WriteString("</")
	w.WriteString(t.Name)
	w.WriteByte('>')
}
