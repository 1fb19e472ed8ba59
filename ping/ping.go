// Package ping implements XEP-0199: XMPP Ping, both responding to
// incoming pings and sending them to measure round-trip latency.
package ping

import (
	"fmt"
	"time"

	xmppcore "git.sr.ht/~coredump/xmppcore"
	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// NS is the XEP-0199 namespace.
const NS = "urn:xmpp:ping"

// Handle registers a responder on s that answers every incoming ping IQ
// with an empty result, per §3 of the XEP: a ping carries no payload
// besides the empty <ping/> element itself, so the response is nothing
// but an empty <iq type='result'/>.
func Handle(s *xmppcore.Session) {
	s.AddExtIQHandler(NS, xmppcore.IQHandlerFunc(func(iq *stanza.IQ) bool {
		if iq.Type != string(stanza.IQGet) {
			return false
		}
		reply := iq.Result(nil)
		return s.SendRaw([]byte(reply.String())) == nil
	}))
}

// Send pings to and blocks until the pong arrives, the session errors
// out, or timeout elapses, returning the observed round-trip time.
// Grounded on gloox's ClientBase::Ping, which is likewise a blocking
// request/response pair keyed by stanza id rather than a callback.
func Send(s *xmppcore.Session, to *jid.JID, timeout time.Duration) (time.Duration, error) {
	t := stanza.NewTag("iq", "")
	t.SetAttr("type", string(stanza.IQGet))
	if to != nil {
		t.SetAttr("to", to.String())
	}
	t.AddChild(stanza.NewTag("ping", NS))

	result := make(chan *stanza.IQ, 1)
	start := time.Now()
	_, err := s.SendIQ(t, xmppcore.IQIDHandlerFunc(func(iq *stanza.IQ, _ int) {
		select {
		case result <- iq:
		default:
		}
	}), 0)
	if err != nil {
		return 0, err
	}

	select {
	case iq := <-result:
		if iq.Type == string(stanza.IQError) {
			cond := "unknown"
			if iq.Err != nil {
				cond = iq.Err.Condition
			}
			return 0, fmt.Errorf("ping: server returned error: %s", cond)
		}
		return time.Since(start), nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("ping: timed out waiting for response from %v", to)
	}
}
