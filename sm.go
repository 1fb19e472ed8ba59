package xmpp

import (
	"fmt"
	"sync"

	"git.sr.ht/~coredump/xmppcore/internal/ns"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// smContext is the XEP-0198 stream management negotiation state.
type smContext int

const (
	smInvalid smContext = iota
	smRequested
	smEnabled
	smResumed
	smFailed
)

// smState tracks the §4.7 bookkeeping: sent/handled counters and the
// unacknowledged-outbound queue. The queue and counters are mutex-protected
// per §5 since acks arrive from dispatch while sends mutate them
// concurrently in a multi-goroutine embedding even though the core itself
// is single-threaded at the protocol layer.
type smState struct {
	mu      sync.Mutex
	ctx     smContext
	sent    uint32
	handled uint32
	queue   map[uint32]*stanza.Tag
	order   []uint32
}

// EnableSM requests XEP-0198 stream management from the server. It is a
// no-op (and an error) unless the session is SessionLive.
func (s *Session) EnableSM(resumable bool) error {
	if s.fsm == nil || s.fsm.state != fsmSessionLive {
		return fmt.Errorf("xmpp: stream management can only be requested once the session is live")
	}
	s.sm.mu.Lock()
	s.sm.ctx = smRequested
	s.sm.mu.Unlock()
	resume := ""
	if resumable {
		resume = ` resume='true'`
	}
	return s.chain.Send([]byte(`<enable xmlns='` + ns.SM + `'` + resume + `/>`))
}

func (s *Session) handleSMEnabled(t *stanza.Tag) {
	s.sm.mu.Lock()
	s.sm.ctx = smEnabled
	s.sm.mu.Unlock()
	for _, l := range s.registry.connectionListeners {
		l.OnStreamEvent("sm-enabled")
	}
}

func (s *Session) handleSMResumed(t *stanza.Tag) {
	s.sm.mu.Lock()
	s.sm.ctx = smResumed
	s.sm.mu.Unlock()
	for _, l := range s.registry.connectionListeners {
		l.OnStreamEvent("sm-resumed")
	}
}

// handleSMAck processes an incoming <a h='N'/>: purge queue entries with
// key <= h (the peer has confirmed receipt).
func (s *Session) handleSMAck(t *stanza.Tag) {
	h := parseUint32(t.GetAttr("h"))
	s.checkQueue(h, false)
}

// sendSMAck replies to an incoming <r/> with our own <a h='sm_handled'/>.
func (s *Session) sendSMAck() {
	s.sm.mu.Lock()
	h := s.sm.handled
	s.sm.mu.Unlock()
	s.chain.Send([]byte(fmt.Sprintf(`<a xmlns='%s' h='%d'/>`, ns.SM, h)))
}

// enqueueSM stores t under key ++sm_sent while sm_context >= Enabled,
// retaining it for possible resend until the peer's ack reaches that key.
func (s *Session) enqueueSM(t *stanza.Tag) (queued bool) {
	s.sm.mu.Lock()
	defer s.sm.mu.Unlock()
	if s.sm.ctx < smEnabled {
		return false
	}
	s.sm.sent++
	key := s.sm.sent
	if s.sm.queue == nil {
		s.sm.queue = make(map[uint32]*stanza.Tag)
	}
	s.sm.queue[key] = t
	s.sm.order = append(s.sm.order, key)
	return true
}

// bumpSMHandled increments sm_handled for every IQ/Message/Presence/
// Subscription received while sm_context >= Enabled.
func (s *Session) bumpSMHandled() {
	s.sm.mu.Lock()
	defer s.sm.mu.Unlock()
	if s.sm.ctx >= smEnabled {
		s.sm.handled++
	}
}

// checkQueue purges queue entries with key <= handled; if resend, it
// re-sends (without re-enqueueing) entries with key > handled, in key
// order.
func (s *Session) checkQueue(handled uint32, resend bool) {
	s.sm.mu.Lock()
	var toResend []*stanza.Tag
	var remaining []uint32
	for _, key := range s.sm.order {
		if key <= handled {
			delete(s.sm.queue, key)
			continue
		}
		remaining = append(remaining, key)
		if resend {
			toResend = append(toResend, s.sm.queue[key])
		}
	}
	s.sm.order = remaining
	s.sm.mu.Unlock()

	for _, tag := range toResend {
		s.chain.Send([]byte(tag.String()))
	}
}

func parseUint32(s string) uint32 {
	var n uint32
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + uint32(r-'0')
	}
	return n
}
