// Package xmpp implements the client-side core of an XMPP endpoint: the
// stream engine that negotiates a secure, authenticated, stanza-oriented
// session with a remote server over a persistent TCP connection, then
// multiplexes IQ, Message, and Presence stanzas between application
// handlers and the wire.
package xmpp

import (
	"crypto/sha1"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/sasl"
	"git.sr.ht/~coredump/xmppcore/stanza"
	"git.sr.ht/~coredump/xmppcore/stream"
	"git.sr.ht/~coredump/xmppcore/transport"
)

// connState mirrors transport.State but at the session layer, since a
// session can be "Connected" at the TCP level while still negotiating
// stream features.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// Session is the core's mutable SessionContext: one per endpoint, built by
// New and reused across reconnects (teardown and Connect reset negotiation
// state without discarding configuration or registered handlers).
type Session struct {
	cfg Config

	registry *registry

	conn  *transport.TCPConnection
	chain *transport.Chain
	tls   transport.TLSEngine

	state int32 // connState, accessed atomically

	mu sync.Mutex

	// Negotiation state (SessionContext fields below, guarded by mu).
	streamID      string
	streamVersion stream.Version
	authed        bool
	resourceBound bool
	resource      string
	fullJID       *jid.JID

	encryptionActive   bool
	compressionActive  bool
	channelBindingType string
	channelBinding     []byte

	saslSession  *sasl.Session
	selectedMech sasl.Mechanism

	fsm *stateMachine

	sm smState

	uniqueBaseID string
	nextID       uint64

	stats Statistics

	extFactory *stanza.ExtensionRegistry

	closeOnce sync.Once
}

// Statistics are the running stanza/byte counters exposed to a
// StatisticsHandler.
type Statistics struct {
	StanzasSent uint64
	StanzasRecv uint64
	BytesSent   uint64
	BytesRecv   uint64
}

// New builds a Session from cfg. The returned Session is Disconnected; call
// Connect to dial and negotiate a stream.
func New(cfg Config) *Session {
	s := &Session{
		cfg:          cfg,
		registry:     newRegistry(),
		tls:          &transport.DefaultTLSEngine{},
		uniqueBaseID: newUniqueBaseID(),
		extFactory:   stanza.NewExtensionRegistry(),
	}
	return s
}

// newUniqueBaseID computes the 40-hex-char SHA1 base that, concatenated
// with the monotonically incrementing counter, forms every stanza id this
// session generates. Grounded on gloox's ClientBase::getID, which hashes
// the current time with a random salt once per process/session rather than
// per id.
func newUniqueBaseID() string {
	h := sha1.New()
	fmt.Fprintf(h, "%d%x", time.Now().UnixNano(), randomSeed())
	return fmt.Sprintf("%x", h.Sum(nil))
}

// State reports the session's TCP-level connection state.
func (s *Session) State() connState {
	return connState(atomic.LoadInt32(&s.state))
}

// JID returns the session's bound full JID, or the configured origin JID
// before resource binding completes.
func (s *Session) JID() *jid.JID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fullJID != nil {
		return s.fullJID
	}
	return s.cfg.Origin
}

// Authed reports whether SASL authentication has completed.
func (s *Session) Authed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// ResourceBound reports whether resource binding has completed.
func (s *Session) ResourceBound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceBound
}

// AddConnectionListener registers l to observe connect/disconnect and TLS
// approval events.
func (s *Session) AddConnectionListener(l ConnectionListener) {
	s.registry.AddConnectionListener(l)
}

// AddIQHandler registers h under the empty namespace: it is consulted only
// for get/set IQs whose payload element carries no namespace, not as a
// fallback for IQs in other namespaces.
func (s *Session) AddIQHandler(h IQHandler) { s.registry.RegisterExtHandler("", h) }

// AddExtIQHandler registers h to be consulted for IQs carrying a payload in
// namespace xmlns.
func (s *Session) AddExtIQHandler(xmlns string, h IQHandler) {
	s.registry.RegisterExtHandler(xmlns, h)
}

// AddMessageHandler registers a fallback handler for messages not claimed
// by a MessageSession.
func (s *Session) AddMessageHandler(h MessageHandler) { s.registry.AddMessageHandler(h) }

// AddPresenceHandler registers a fallback handler for presence not claimed
// by a PresenceJIDHandler.
func (s *Session) AddPresenceHandler(h PresenceHandler) { s.registry.AddPresenceHandler(h) }

// AddPresenceJIDHandler registers h for presence from bare's full JID set.
func (s *Session) AddPresenceJIDHandler(bare *jid.JID, h PresenceJIDHandler) {
	s.registry.AddPresenceJIDHandler(bare.Bare().String(), h)
}

// AddSubscriptionHandler registers h to be called for every subscription
// presence received.
func (s *Session) AddSubscriptionHandler(h SubscriptionHandler) {
	s.registry.AddSubscriptionHandler(h)
}

// AddTagHandler registers h for foreign-namespace Tags matching name/xmlns.
func (s *Session) AddTagHandler(name, xmlns string, h TagHandler) {
	s.registry.AddTagHandler(name, xmlns, h)
}

// SetMessageSessionHandler registers h to be offered a fresh MessageSession
// for the first unmatched message of the given stanza.MessageType.
func (s *Session) SetMessageSessionHandler(subtype stanza.MessageType, h MessageSessionHandler) {
	s.registry.SetMessageSessionHandler(string(subtype), h)
}

// SetStatisticsHandler installs h to be notified after every stanza send or
// receive with the running Statistics.
func (s *Session) SetStatisticsHandler(h StatisticsHandler) { s.registry.SetStatisticsHandler(h) }

// SetMUCInvitationHandler installs h to be notified of MUC mediated
// invitations.
func (s *Session) SetMUCInvitationHandler(h MUCInvitationHandler) {
	s.registry.SetMUCInvitationHandler(h)
}

// SetDefaultTagHandler installs the fallback TagHandler consulted when no
// exact (name, xmlns) registration claims a foreign-namespace Tag; a
// mux.ServeMux is the typical occupant, for wildcard dispatch by namespace
// or local name alone.
func (s *Session) SetDefaultTagHandler(h TagHandler) {
	s.registry.SetDefaultTagHandler(h)
}

// RegisterExtension adds f to the factory registry consulted when decoding
// stanza extensions.
func (s *Session) RegisterExtension(name, xmlns string, f stanza.Factory) {
	s.extFactory.Register(name, xmlns, f)
}

// DecodeExtension looks up a registered factory for t's (name, xmlns) and
// decodes t with it, returning (nil, nil) if nothing is registered for that
// pair. A handler calls this on the Tags Stanza.Extensions returns once it
// recognizes a foreign-namespace child it cares about.
func (s *Session) DecodeExtension(t *stanza.Tag) (stanza.Extension, error) {
	return s.extFactory.Decode(t)
}

func (s *Session) bumpStats(sent, recv bool, nBytes int, wasSend bool) {
	if sent {
		atomic.AddUint64(&s.stats.StanzasSent, 1)
	}
	if recv {
		atomic.AddUint64(&s.stats.StanzasRecv, 1)
	}
	if wasSend {
		atomic.AddUint64(&s.stats.BytesSent, uint64(nBytes))
	} else {
		atomic.AddUint64(&s.stats.BytesRecv, uint64(nBytes))
	}
	if h := s.registry.statisticsHandler; h != nil {
		h.HandleStatistics(atomic.LoadUint64(&s.stats.StanzasSent), atomic.LoadUint64(&s.stats.StanzasRecv),
			atomic.LoadUint64(&s.stats.BytesSent), atomic.LoadUint64(&s.stats.BytesRecv))
	}
}
