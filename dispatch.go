package xmpp

import (
	"git.sr.ht/~coredump/xmppcore/internal/ns"
	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// dispatch routes a depth-1 Tag that survived FSM negotiation (features,
// proceed, SASL, bind, SM acks — all consumed earlier) to the appropriate
// stanza handler, per §4.4.
func (s *Session) dispatch(t *stanza.Tag) {
	if t.XMLNS != "" && t.XMLNS != ns.Client {
		if h := s.registry.tagHandlerFor(t.Name, t.XMLNS); h != nil {
			h.HandleTag(t)
			return
		}
		if s.registry.defaultTagHandler != nil {
			s.registry.defaultTagHandler.HandleTag(t)
		}
		return
	}

	switch t.Name {
	case "iq":
		s.dispatchIQ(t)
	case "message":
		s.dispatchMessage(t)
	case "presence":
		s.dispatchPresence(t)
	}
}

func (s *Session) dispatchIQ(t *stanza.Tag) {
	iq, err := stanza.NewIQ(t)
	if err != nil {
		return
	}
	s.bumpSMHandled()

	if iq.Type == string(stanza.IQResult) || iq.Type == string(stanza.IQError) {
		if entry, ok := s.registry.TakeIDHandler(iq.ID); ok {
			if entry.handler != nil {
				entry.handler.HandleIQID(iq, entry.context)
			}
			return
		}
	}

	if iq.Type != string(stanza.IQGet) && iq.Type != string(stanza.IQSet) {
		return
	}

	if iq.Payload == nil {
		s.sendErrorReply(iq, stanza.ErrorCancel, "feature-not-implemented")
		return
	}

	handlers := s.registry.ExtHandlers(iq.Payload.XMLNS)
	for _, h := range handlers {
		if h.HandleIQ(iq) {
			return
		}
	}
	s.sendErrorReply(iq, stanza.ErrorCancel, "service-unavailable")
}

func (s *Session) sendErrorReply(iq *stanza.IQ, typ stanza.ErrorType, condition string) {
	reply := iq.ErrorReply(typ, condition, "")
	s.chain.Send([]byte(reply.String()))
}

func (s *Session) dispatchMessage(t *stanza.Tag) {
	m, err := stanza.NewMessage(t)
	if err != nil {
		return
	}
	s.bumpSMHandled()

	if s.mucInvitation(m, t) {
		return
	}

	if sess := s.matchMessageSession(m); sess != nil {
		sess.deliver(m)
		return
	}

	if h, ok := s.registry.messageSessionHandlers[m.Type]; ok {
		sess := newMessageSession(s, m.From, stanza.MessageType(m.Type))
		s.registry.AddMessageSession(sess)
		h.HandleMessageSession(sess)
		sess.deliver(m)
		return
	}

	for _, h := range s.registry.messageHandlers {
		h.HandleMessage(m)
	}
}

// mucInvitation recognizes a MUC mediated invitation (a <x
// xmlns='http://jabber.org/protocol/muc#user'><invite/></x> child) and
// reports it through MUCInvitationHandler instead of ordinary message
// dispatch.
func (s *Session) mucInvitation(m *stanza.Message, t *stanza.Tag) bool {
	h := s.registry.mucInvitationHandler
	if h == nil {
		return false
	}
	x := t.FindChild("x", "http://jabber.org/protocol/muc#user")
	if x == nil {
		return false
	}
	invite := x.FindChild("invite", "")
	if invite == nil {
		return false
	}
	room := m.From
	var from *jid.JID
	if fromAttr := invite.GetAttr("from"); fromAttr != "" {
		from, _ = jid.Parse(fromAttr)
	}
	reason := ""
	if r := invite.FindChild("reason", ""); r != nil {
		reason = r.CData
	}
	h.HandleMUCInvitation(room, from, reason)
	return true
}

func (s *Session) dispatchPresence(t *stanza.Tag) {
	typ := t.GetAttr("type")
	if isSubscriptionType(typ) {
		sub, err := stanza.NewSubscription(t)
		if err != nil {
			return
		}
		s.bumpSMHandled()
		for _, h := range s.registry.subscriptionHandlers {
			h.HandleSubscription(sub)
		}
		return
	}

	p, err := stanza.NewPresence(t)
	if err != nil {
		return
	}
	s.bumpSMHandled()

	handlers := s.registry.presenceJIDHandlersFor(p.From)
	if len(handlers) > 0 {
		for _, h := range handlers {
			h.HandlePresenceJID(p)
		}
		return
	}
	for _, h := range s.registry.presenceHandlers {
		h.HandlePresence(p)
	}
}

func isSubscriptionType(typ string) bool {
	switch typ {
	case "subscribe", "subscribed", "unsubscribe", "unsubscribed":
		return true
	default:
		return false
	}
}
