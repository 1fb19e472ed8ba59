// Command xmppcorectl is a minimal reference client: it connects, logs in,
// announces availability, echoes chat messages back to their sender, and
// answers XEP-0199 pings, the way the teacher's echobot example does with
// xmpp.DialClientSession, adapted to this package's Session/registry API.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"

	xmppcore "git.sr.ht/~coredump/xmppcore"
	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/ping"
	"git.sr.ht/~coredump/xmppcore/stanza"
	"git.sr.ht/~coredump/xmppcore/transport"
)

func main() {
	var (
		addr    = flag.String("addr", "", "server:port to dial (defaults to the JID's domain, port 5222)")
		origin  = flag.String("jid", "", "the JID to authenticate as")
		pass    = flag.String("password", "", "SASL password")
		insecure = flag.Bool("insecure-skip-starttls", false, "disable STARTTLS (testing only)")
	)
	flag.Parse()

	if *origin == "" || *pass == "" {
		log.Fatal("xmppcorectl: -jid and -password are required")
	}
	j, err := jid.Parse(*origin)
	if err != nil {
		log.Fatalf("xmppcorectl: invalid jid: %v", err)
	}

	cfg := xmppcore.DefaultConfig(j, *pass)
	cfg.Server = j.Domain()
	if *addr != "" {
		host, port, splitErr := splitAddr(*addr)
		if splitErr != nil {
			log.Fatalf("xmppcorectl: invalid -addr: %v", splitErr)
		}
		cfg.Server = host
		cfg.Port = port
	}
	if *insecure {
		cfg.TLSPolicy = xmppcore.TLSDisabled
	}

	s := xmppcore.New(cfg)
	ping.Handle(s)

	s.AddMessageHandler(xmppcore.MessageHandlerFunc(func(m *stanza.Message) {
		if m.Type != string(stanza.MessageChat) || m.Body == "" {
			return
		}
		reply := stanza.NewOutboundMessage(m.From.Bare().String(), string(stanza.MessageChat), m.Body)
		if err := s.SendMessage(reply); err != nil {
			log.Printf("xmppcorectl: error echoing message %s: %v", m.ID, err)
		}
	}))

	done := make(chan struct{})
	s.AddConnectionListener(ctlListener{s: s, done: done})

	log.Printf("xmppcorectl: connecting to %s:%d as %s", cfg.Server, cfg.Port, j)
	if err := s.Connect(); err != nil {
		log.Fatalf("xmppcorectl: connect failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	select {
	case <-done:
	case <-sigCh:
		s.Disconnect()
		<-done
	}
}

type ctlListener struct {
	xmppcore.BaseConnectionListener
	s    *xmppcore.Session
	done chan struct{}
}

func (l ctlListener) OnStreamEvent(event string) {
	if event != "session-live" {
		return
	}
	log.Printf("xmppcorectl: session live as %s", l.s.JID())
	if err := l.s.SendPresence(stanza.NewOutboundPresence("", stanza.PresenceAvailable)); err != nil {
		log.Printf("xmppcorectl: error sending initial presence: %v", err)
	}
}

func (l ctlListener) OnTLSConnect(info transport.CertInfo) bool {
	log.Printf("xmppcorectl: TLS peer: %v (verified=%v)", info.Subject, info.Verified)
	return true
}

func (l ctlListener) OnDisconnect(reason *xmppcore.DisconnectError) {
	if reason != nil {
		log.Printf("xmppcorectl: disconnected: %v", reason)
	}
	close(l.done)
}

func splitAddr(addr string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	return host, port, err
}
