package stanza

import "git.sr.ht/~coredump/xmppcore/jid"

// Kind identifies which of the three first-level stanza elements a Stanza
// wraps: RFC 6120 §8 defines exactly these three, each with its own child
// vocabulary and routing rules.
type Kind int

const (
	// KindIQ is <iq/>.
	KindIQ Kind = iota
	// KindMessage is <message/>.
	KindMessage
	// KindPresence is <presence/>.
	KindPresence
)

func (k Kind) String() string {
	switch k {
	case KindIQ:
		return "iq"
	case KindMessage:
		return "message"
	case KindPresence:
		return "presence"
	default:
		return "unknown"
	}
}

// Stanza holds the header fields common to all three stanza kinds: from, to,
// id, type, and xml:lang, plus the underlying Tag for anything extension
// code needs that the typed accessors don't expose.
type Stanza struct {
	Kind Kind
	Tag  *Tag

	From *jid.JID
	To   *jid.JID
	ID   string
	Type string
	Lang string
}

// FromTag builds a Stanza header by reading the common attributes off t; it
// does not interpret t's children, which is the job of the kind-specific
// constructors (NewIQ, NewMessage, NewPresence).
func FromTag(kind Kind, t *Tag) (Stanza, error) {
	s := Stanza{Kind: kind, Tag: t, ID: t.GetAttr("id"), Type: t.GetAttr("type"), Lang: t.GetAttr("lang")}
	if from := t.GetAttr("from"); from != "" {
		j, err := jid.Parse(from)
		if err != nil {
			return s, err
		}
		s.From = j
	}
	if to := t.GetAttr("to"); to != "" {
		j, err := jid.Parse(to)
		if err != nil {
			return s, err
		}
		s.To = j
	}
	return s, nil
}

// Extensions returns every direct child of the stanza whose "name|xmlns"
// key is not in known, the set of elements the caller already handles; what
// remains are the payloads a TagHandler or extension factory would care
// about.
func (s Stanza) Extensions(known map[string]bool) []*Tag {
	var out []*Tag
	for _, c := range s.Tag.Children {
		if !known[c.Name+"|"+c.XMLNS] {
			out = append(out, c)
		}
	}
	return out
}
