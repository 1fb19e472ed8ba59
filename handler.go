package xmpp

import (
	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/stanza"
	"git.sr.ht/~coredump/xmppcore/transport"
)

// IQHandler handles an incoming get/set IQ that was not matched by an
// id-correlated IQIDHandler. Returning true marks the IQ handled (no
// service-unavailable error is synthesized).
type IQHandler interface {
	HandleIQ(iq *stanza.IQ) bool
}

// IQHandlerFunc adapts a function to an IQHandler.
type IQHandlerFunc func(*stanza.IQ) bool

func (f IQHandlerFunc) HandleIQ(iq *stanza.IQ) bool { return f(iq) }

// IQIDHandler is invoked when a result/error IQ arrives whose id matches one
// registered by a prior Get/Set send.
type IQIDHandler interface {
	HandleIQID(iq *stanza.IQ, context int)
}

// IQIDHandlerFunc adapts a function to an IQIDHandler.
type IQIDHandlerFunc func(*stanza.IQ, int)

func (f IQIDHandlerFunc) HandleIQID(iq *stanza.IQ, context int) { f(iq, context) }

// MessageHandler handles an incoming message not claimed by any
// MessageSession.
type MessageHandler interface {
	HandleMessage(m *stanza.Message)
}

// MessageHandlerFunc adapts a function to a MessageHandler.
type MessageHandlerFunc func(*stanza.Message)

func (f MessageHandlerFunc) HandleMessage(m *stanza.Message) { f(m) }

// PresenceHandler handles an incoming availability presence.
type PresenceHandler interface {
	HandlePresence(p *stanza.Presence)
}

// PresenceHandlerFunc adapts a function to a PresenceHandler.
type PresenceHandlerFunc func(*stanza.Presence)

func (f PresenceHandlerFunc) HandlePresence(p *stanza.Presence) { f(p) }

// PresenceJIDHandler is registered against one specific bare JID.
type PresenceJIDHandler interface {
	HandlePresenceJID(p *stanza.Presence)
}

// SubscriptionHandler handles subscribe/subscribed/unsubscribe/unsubscribed
// presence.
type SubscriptionHandler interface {
	HandleSubscription(s stanza.Subscription)
}

// SubscriptionHandlerFunc adapts a function to a SubscriptionHandler.
type SubscriptionHandlerFunc func(stanza.Subscription)

func (f SubscriptionHandlerFunc) HandleSubscription(s stanza.Subscription) { f(s) }

// TagHandler handles a foreign-namespace, depth-1 Tag that isn't one of the
// three stanza kinds.
type TagHandler interface {
	HandleTag(t *stanza.Tag)
}

// ConnectionListener observes the session's lifecycle.
type ConnectionListener interface {
	OnConnect()
	OnDisconnect(reason *DisconnectError)
	// OnTLSConnect is asked to approve a completed TLS handshake; returning
	// false tears the connection down.
	OnTLSConnect(info transport.CertInfo) bool
	OnResourceBind(resource string)
	OnResourceBindError(err error)
	OnSessionCreateError(err error)
	OnStreamEvent(event string)
}

// BaseConnectionListener supplies no-op defaults so applications can embed
// it and override only the callbacks they care about.
type BaseConnectionListener struct{}

func (BaseConnectionListener) OnConnect()                                       {}
func (BaseConnectionListener) OnDisconnect(reason *DisconnectError)             {}
func (BaseConnectionListener) OnTLSConnect(info transport.CertInfo) bool        { return true }
func (BaseConnectionListener) OnResourceBind(resource string)                   {}
func (BaseConnectionListener) OnResourceBindError(err error)                    {}
func (BaseConnectionListener) OnSessionCreateError(err error)                   {}
func (BaseConnectionListener) OnStreamEvent(event string)                       {}

// MessageSessionHandler is invoked once per incoming message of a given
// subtype that does not match any existing MessageSession, so the
// application can create and register one.
type MessageSessionHandler interface {
	HandleMessageSession(session *MessageSession)
}

// StatisticsHandler is notified after every stanza send/receive with the
// running counters.
type StatisticsHandler interface {
	HandleStatistics(sentStanzas, recvStanzas, sentBytes, recvBytes uint64)
}

// MUCInvitationHandler is invoked for a message carrying a MUC mediated
// invitation.
type MUCInvitationHandler interface {
	HandleMUCInvitation(room *jid.JID, from *jid.JID, reason string)
}
