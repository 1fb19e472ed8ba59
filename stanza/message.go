package stanza

// MessageType is the RFC 6121 §5.2.2 'type' attribute of a <message/>.
type MessageType string

const (
	MessageChat      MessageType = "chat"
	MessageError     MessageType = "error"
	MessageGroupchat MessageType = "groupchat"
	MessageHeadline  MessageType = "headline"
	MessageNormal    MessageType = "normal"
)

// Message is a one-to-one or one-to-many push stanza.
type Message struct {
	Stanza
	Body    string
	Subject string
	Thread  string
	Err     *Error
}

// NewMessage parses a <message/> Tag.
func NewMessage(t *Tag) (*Message, error) {
	base, err := FromTag(KindMessage, t)
	if err != nil {
		return nil, err
	}
	m := &Message{Stanza: base}
	if b := t.FindChild("body", ""); b != nil {
		m.Body = b.CData
	}
	if s := t.FindChild("subject", ""); s != nil {
		m.Subject = s.CData
	}
	if th := t.FindChild("thread", ""); th != nil {
		m.Thread = th.CData
	}
	errEl, err := ParseError(t)
	if err != nil {
		return nil, err
	}
	m.Err = errEl
	return m, nil
}

// NewOutboundMessage builds a <message/> Tag ready for the sender: to, type,
// and a plain-text body.
func NewOutboundMessage(to, typ, body string) *Tag {
	t := NewTag("message", "")
	t.SetAttr("to", to)
	if typ != "" {
		t.SetAttr("type", typ)
	}
	bodyTag := NewTag("body", "")
	bodyTag.CData = body
	t.AddChild(bodyTag)
	return t
}
