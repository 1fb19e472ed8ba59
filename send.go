package xmpp

import (
	"fmt"

	"git.sr.ht/~coredump/xmppcore/stanza"
)

// nextStanzaID returns the next id this session will use to stamp an
// outbound stanza: the session's 40-hex-char unique base plus a
// monotonically increasing 8-hex-char counter, per §4.6. The base is
// computed once in New/newUniqueBaseID so ids remain unique across
// reconnects within the same process.
func (s *Session) nextStanzaID() string {
	s.mu.Lock()
	s.nextID++
	n := s.nextID
	s.mu.Unlock()
	return fmt.Sprintf("%s%08x", s.uniqueBaseID, n)
}

// stampFrom sets t's from attribute to this session's bound full JID, if
// authed and bound and the caller didn't already set one.
func (s *Session) stampFrom(t *stanza.Tag) {
	if t.GetAttr("from") != "" {
		return
	}
	s.mu.Lock()
	authed, bound, full := s.authed, s.resourceBound, s.fullJID
	s.mu.Unlock()
	if authed && bound && full != nil {
		t.SetAttr("from", full.String())
	}
}

// sendTag is the send() primitive: it stamps a from address, offers the
// tag to stream management queueing, and writes it to the wire.
func (s *Session) sendTag(t *stanza.Tag, deleteAfterSend bool) error {
	s.stampFrom(t)
	raw := []byte(t.String())
	s.enqueueSM(t)
	if err := s.chain.Send(raw); err != nil {
		return err
	}
	s.bumpStats(true, false, len(raw), true)
	return nil
}

// SendIQ sends iq and, if h is non-nil, registers h to be invoked when the
// matching result/error arrives (deleteOnFire: a request is answered at
// most once).
func (s *Session) SendIQ(t *stanza.Tag, h IQIDHandler, context int) (id string, err error) {
	id = t.GetAttr("id")
	if id == "" {
		id = s.nextStanzaID()
		t.SetAttr("id", id)
	}
	if h != nil {
		s.registry.RegisterIDHandler(id, h, context, true)
	}
	return id, s.sendTag(t, false)
}

// SendMessage sends a pre-built <message/> Tag.
func (s *Session) SendMessage(t *stanza.Tag) error {
	return s.sendTag(t, false)
}

// SendPresence sends a pre-built <presence/> Tag.
func (s *Session) SendPresence(t *stanza.Tag) error {
	return s.sendTag(t, false)
}

// SendSubscriptionReply sends a subscribed/unsubscribed reply built from an
// incoming subscription request.
func (s *Session) SendSubscriptionReply(sub stanza.Subscription, accept bool) error {
	return s.sendTag(sub.Reply(accept), false)
}

// SendRaw writes pre-serialized XML straight to the wire, bypassing stream
// management queueing; used for protocol-level elements (auth, bind
// requests, acks) rather than application stanzas.
func (s *Session) SendRaw(raw []byte) error {
	return s.chain.Send(raw)
}
