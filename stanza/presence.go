package stanza

// PresenceType is the RFC 6121 §4.7.1 'type' attribute of a <presence/>.
// The empty string is the default "available" presence.
type PresenceType string

const (
	PresenceAvailable    PresenceType = ""
	PresenceError        PresenceType = "error"
	PresenceProbe        PresenceType = "probe"
	PresenceSubscribe    PresenceType = "subscribe"
	PresenceSubscribed   PresenceType = "subscribed"
	PresenceUnavailable  PresenceType = "unavailable"
	PresenceUnsubscribe  PresenceType = "unsubscribe"
	PresenceUnsubscribed PresenceType = "unsubscribed"
)

// IsSubscription reports whether t is one of the four subscription-related
// presence types, which the dispatcher routes to SubscriptionHandlers
// instead of ordinary PresenceHandlers.
func (t PresenceType) IsSubscription() bool {
	switch t {
	case PresenceSubscribe, PresenceSubscribed, PresenceUnsubscribe, PresenceUnsubscribed:
		return true
	default:
		return false
	}
}

// Show is the RFC 6121 §4.7.2.1 <show/> value.
type Show string

const (
	ShowNone Show = ""
	ShowAway Show = "away"
	ShowChat Show = "chat"
	ShowDND  Show = "dnd"
	ShowXA   Show = "xa"
)

// Presence is an availability/status broadcast or directed probe.
type Presence struct {
	Stanza
	Show     Show
	Status   string
	Priority int8
	Err      *Error
}

// NewPresence parses a <presence/> Tag.
func NewPresence(t *Tag) (*Presence, error) {
	base, err := FromTag(KindPresence, t)
	if err != nil {
		return nil, err
	}
	p := &Presence{Stanza: base}
	if s := t.FindChild("show", ""); s != nil {
		p.Show = Show(s.CData)
	}
	if s := t.FindChild("status", ""); s != nil {
		p.Status = s.CData
	}
	errEl, err := ParseError(t)
	if err != nil {
		return nil, err
	}
	p.Err = errEl
	return p, nil
}

// NewOutboundPresence builds a <presence/> Tag of the given type, addressed
// to `to` (which may be empty for a broadcast presence).
func NewOutboundPresence(to string, typ PresenceType) *Tag {
	t := NewTag("presence", "")
	if to != "" {
		t.SetAttr("to", to)
	}
	if typ != PresenceAvailable {
		t.SetAttr("type", string(typ))
	}
	return t
}
