package xmpp

import (
	"sync"

	"git.sr.ht/~coredump/xmppcore/jid"
)

// idEntry is one row of the id-correlated IQ handler table.
type idEntry struct {
	handler    IQIDHandler
	context    int
	deleteOnFire bool
}

// tagEntry matches a foreign-namespace Tag by (name, xmlns).
type tagEntry struct {
	name, xmlns string
	handler     TagHandler
}

// presenceJIDEntry matches presence from one specific bare JID.
type presenceJIDEntry struct {
	bare    string
	handler PresenceJIDHandler
}

// registry holds every handler table the dispatcher consults. Per §4.5/§5,
// only the IQ-id map and IQ-extension multimap are mutex-protected: they
// may be mutated from send() while dispatch is concurrently reading them.
// Every other list is documented as single-threaded, driven by the
// transport Chain's parser goroutine, which calls into dispatch.
type registry struct {
	idMu       sync.Mutex
	idHandlers map[string]idEntry

	extMu       sync.Mutex
	extHandlers map[string][]IQHandler

	presenceHandlers    []PresenceHandler
	presenceJIDHandlers []presenceJIDEntry
	messageHandlers     []MessageHandler
	subscriptionHandlers []SubscriptionHandler
	tagHandlers         []tagEntry
	connectionListeners []ConnectionListener
	messageSessions     []*MessageSession
	messageSessionHandlers map[string]MessageSessionHandler

	statisticsHandler    StatisticsHandler
	mucInvitationHandler MUCInvitationHandler
	defaultTagHandler    TagHandler
}

func newRegistry() *registry {
	return &registry{
		idHandlers:             make(map[string]idEntry),
		extHandlers:            make(map[string][]IQHandler),
		messageSessionHandlers: make(map[string]MessageSessionHandler),
	}
}

// RegisterIDHandler records a handler to be invoked once a result/error IQ
// with the given id arrives.
func (r *registry) RegisterIDHandler(id string, h IQIDHandler, context int, deleteOnFire bool) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	r.idHandlers[id] = idEntry{handler: h, context: context, deleteOnFire: deleteOnFire}
}

// RemoveIDHandler removes a registered id handler, returning false if none
// was registered.
func (r *registry) RemoveIDHandler(id string) bool {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	if _, ok := r.idHandlers[id]; !ok {
		return false
	}
	delete(r.idHandlers, id)
	return true
}

// TakeIDHandler looks up and, if deleteOnFire, removes the handler for id.
func (r *registry) TakeIDHandler(id string) (idEntry, bool) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	e, ok := r.idHandlers[id]
	if !ok {
		return idEntry{}, false
	}
	if e.deleteOnFire {
		delete(r.idHandlers, id)
	}
	return e, true
}

// RegisterExtHandler appends an IQHandler to the list consulted for the
// given extension (child element) namespace.
func (r *registry) RegisterExtHandler(xmlns string, h IQHandler) {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	r.extHandlers[xmlns] = append(r.extHandlers[xmlns], h)
}

// RemoveExtHandler removes h from xmlns's handler list.
func (r *registry) RemoveExtHandler(xmlns string, h IQHandler) {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	list := r.extHandlers[xmlns]
	for i, cand := range list {
		if sameHandler(cand, h) {
			r.extHandlers[xmlns] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// ExtHandlers returns a snapshot of the handlers registered for xmlns.
func (r *registry) ExtHandlers(xmlns string) []IQHandler {
	r.extMu.Lock()
	defer r.extMu.Unlock()
	out := make([]IQHandler, len(r.extHandlers[xmlns]))
	copy(out, r.extHandlers[xmlns])
	return out
}

func (r *registry) AddPresenceHandler(h PresenceHandler) {
	r.presenceHandlers = append(r.presenceHandlers, h)
}

func (r *registry) AddPresenceJIDHandler(bare string, h PresenceJIDHandler) {
	r.presenceJIDHandlers = append(r.presenceJIDHandlers, presenceJIDEntry{bare: bare, handler: h})
}

func (r *registry) AddMessageHandler(h MessageHandler) {
	r.messageHandlers = append(r.messageHandlers, h)
}

func (r *registry) AddSubscriptionHandler(h SubscriptionHandler) {
	r.subscriptionHandlers = append(r.subscriptionHandlers, h)
}

func (r *registry) AddTagHandler(name, xmlns string, h TagHandler) {
	r.tagHandlers = append(r.tagHandlers, tagEntry{name: name, xmlns: xmlns, handler: h})
}

func (r *registry) AddConnectionListener(l ConnectionListener) {
	r.connectionListeners = append(r.connectionListeners, l)
}

func (r *registry) AddMessageSession(s *MessageSession) {
	r.messageSessions = append(r.messageSessions, s)
}

func (r *registry) RemoveMessageSession(s *MessageSession) {
	for i, cand := range r.messageSessions {
		if cand == s {
			r.messageSessions = append(r.messageSessions[:i], r.messageSessions[i+1:]...)
			return
		}
	}
}

func (r *registry) SetMessageSessionHandler(subtype string, h MessageSessionHandler) {
	r.messageSessionHandlers[subtype] = h
}

func (r *registry) SetStatisticsHandler(h StatisticsHandler) { r.statisticsHandler = h }

func (r *registry) SetMUCInvitationHandler(h MUCInvitationHandler) { r.mucInvitationHandler = h }

// SetDefaultTagHandler installs the handler consulted for a foreign-namespace
// Tag that no exact (name, xmlns) registration claims; a mux.ServeMux is the
// usual occupant of this slot, since it can match on namespace or name alone.
func (r *registry) SetDefaultTagHandler(h TagHandler) { r.defaultTagHandler = h }

// tagHandlerFor looks up the handler registered for a foreign Tag's
// (name, xmlns) pair.
func (r *registry) tagHandlerFor(name, xmlns string) TagHandler {
	for _, e := range r.tagHandlers {
		if e.name == name && e.xmlns == xmlns {
			return e.handler
		}
	}
	return nil
}

// presenceJIDHandlersFor returns handlers registered against from's bare
// form.
func (r *registry) presenceJIDHandlersFor(from *jid.JID) []PresenceJIDHandler {
	if from == nil {
		return nil
	}
	bare := from.Bare().String()
	var out []PresenceJIDHandler
	for _, e := range r.presenceJIDHandlers {
		if e.bare == bare {
			out = append(out, e.handler)
		}
	}
	return out
}

// sameHandler compares two IQHandlers for identity; function-adapted
// handlers never compare equal to anything (Go funcs aren't comparable
// meaningfully), so an IQHandlerFunc, once registered, cannot be removed
// through RemoveExtHandler.
func sameHandler(a, b IQHandler) bool {
	_, aok := a.(IQHandlerFunc)
	_, bok := b.(IQHandlerFunc)
	if aok || bok {
		return false
	}
	return a == b
}
