package xmpp

import (
	"sync"

	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// MessageSession is a conversational thread with one peer JID: once
// created (either by the application via NewMessageSession, or implicitly
// by a registered MessageSessionHandler), it claims every subsequent
// message from its peer that matches its thread and type filters, so a
// global MessageHandler never sees them. Per spec's dispatch-exclusivity
// property, a message consumed by a MessageSession never reaches a global
// MessageHandler.
type MessageSession struct {
	s    *Session
	peer *jid.JID

	mu         sync.Mutex
	threadID   string
	honorThread bool
	types      map[stanza.MessageType]bool // empty/nil means "all types"

	handler MessageHandler
}

// NewMessageSession creates a session the application owns and registers
// directly, for peers it wants to track before any message has arrived.
func NewMessageSession(s *Session, peer *jid.JID, h MessageHandler) *MessageSession {
	sess := newMessageSession(s, peer, "")
	sess.handler = h
	s.registry.AddMessageSession(sess)
	return sess
}

func newMessageSession(s *Session, peer *jid.JID, subtype stanza.MessageType) *MessageSession {
	sess := &MessageSession{s: s, peer: peer, honorThread: true}
	if subtype != "" {
		sess.types = map[stanza.MessageType]bool{subtype: true}
	}
	return sess
}

// SetThreadID restricts the session to messages carrying this <thread/>
// value; messages with no <thread/> at all still match.
func (ms *MessageSession) SetThreadID(id string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.threadID = id
}

// SetTypes restricts the session to the given message subtypes; an empty
// list matches every subtype.
func (ms *MessageSession) SetTypes(types ...stanza.MessageType) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(types) == 0 {
		ms.types = nil
		return
	}
	ms.types = make(map[stanza.MessageType]bool, len(types))
	for _, t := range types {
		ms.types[t] = true
	}
}

// SetHandler installs the handler messages matching this session are
// delivered to.
func (ms *MessageSession) SetHandler(h MessageHandler) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handler = h
}

// Close removes the session from the registry; it will no longer claim
// messages.
func (ms *MessageSession) Close() {
	ms.s.registry.RemoveMessageSession(ms)
}

// Send sends a message through this session, addressed to its peer and
// tagged with the session's thread, if any.
func (ms *MessageSession) Send(body string) error {
	ms.mu.Lock()
	thread := ms.threadID
	ms.mu.Unlock()
	to := ms.peer.String()
	tag := stanza.NewOutboundMessage(to, string(stanza.MessageChat), body)
	if thread != "" {
		th := stanza.NewTag("thread", "")
		th.CData = thread
		tag.AddChild(th)
	}
	return ms.s.sendTag(tag, false)
}

func (ms *MessageSession) matches(m *stanza.Message) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if m.Thread != "" && m.Thread != ms.threadID && ms.honorThread {
		return false
	}
	if len(ms.types) == 0 {
		return true
	}
	return ms.types[stanza.MessageType(m.Type)]
}

func (ms *MessageSession) deliver(m *stanza.Message) {
	ms.mu.Lock()
	h := ms.handler
	ms.mu.Unlock()
	if h != nil {
		h.HandleMessage(m)
	}
}

// matchMessageSession walks message_sessions twice (full JID match, then
// bare JID match) per §4.4, returning the first session whose filters
// accept m.
func (s *Session) matchMessageSession(m *stanza.Message) *MessageSession {
	if m.From == nil {
		return nil
	}
	for _, pass := range []bool{true, false} {
		for _, sess := range s.registry.messageSessions {
			if sess.peer == nil {
				continue
			}
			var peerMatches bool
			if pass {
				peerMatches = sess.peer.String() == m.From.String()
			} else {
				peerMatches = sess.peer.Bare().String() == m.From.Bare().String()
			}
			if peerMatches && sess.matches(m) {
				return sess
			}
		}
	}
	return nil
}
