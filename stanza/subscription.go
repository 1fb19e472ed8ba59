package stanza

import "git.sr.ht/~coredump/xmppcore/jid"

// Subscription is the distinguished subtype of <presence/> carrying one of
// the four RFC 6121 §3 roster-subscription types. The dispatcher routes
// these to SubscriptionHandlers rather than general PresenceHandlers, since
// a roster-aware application almost always wants to treat them as a
// separate event class (auto-accept, prompt the user, etc.) instead of
// folding them into ordinary availability handling.
type Subscription struct {
	From *jid.JID
	To   *jid.JID
	Type PresenceType
}

// NewSubscription extracts a Subscription from a presence Tag whose type is
// one of subscribe/subscribed/unsubscribe/unsubscribed. The caller is
// expected to have already checked PresenceType.IsSubscription.
func NewSubscription(t *Tag) (Subscription, error) {
	s := Subscription{Type: PresenceType(t.GetAttr("type"))}
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

// Reply builds the matching presence response for a subscription request:
// subscribe -> subscribed/unsubscribed, unsubscribe -> unsubscribed.
func (s Subscription) Reply(accept bool) *Tag {
	var typ PresenceType
	switch s.Type {
	case PresenceSubscribe:
		if accept {
			typ = PresenceSubscribed
		} else {
			typ = PresenceUnsubscribed
		}
	case PresenceUnsubscribe:
		typ = PresenceUnsubscribed
	default:
		typ = s.Type
	}
	to := ""
	if s.From != nil {
		to = s.From.String()
	}
	return NewOutboundPresence(to, typ)
}
