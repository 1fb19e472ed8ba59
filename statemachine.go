package xmpp

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"sync"
	"sync/atomic"

	"git.sr.ht/~coredump/xmppcore/compress"
	"git.sr.ht/~coredump/xmppcore/internal/ns"
	"git.sr.ht/~coredump/xmppcore/jid"
	"git.sr.ht/~coredump/xmppcore/sasl"
	"git.sr.ht/~coredump/xmppcore/stanza"
	"git.sr.ht/~coredump/xmppcore/stream"
	"git.sr.ht/~coredump/xmppcore/transport"
)

// fsmState is the stream negotiation state, per spec's
// Start → StreamOpenSent → FeaturesReceived → [TLS → StreamReopen →]
// [Compression → StreamReopen →] SASL → Authenticated → Bind →
// SessionLive → Closing → Closed.
type fsmState int

const (
	fsmStart fsmState = iota
	fsmStreamOpenSent
	fsmFeaturesReceived
	fsmTLSNegotiating
	fsmCompressionNegotiating
	fsmSASLAuthenticating
	fsmAuthenticated
	fsmBindNegotiating
	fsmSessionLive
	fsmClosing
	fsmClosed
)

// stateMachine drives negotiation on behalf of a Session; it is a separate
// type only to keep Session's own exported surface free of negotiation
// plumbing, not because it has an independent lifetime.
type stateMachine struct {
	s     *Session
	state fsmState

	mechanisms         []string
	serverOffersTLS    bool
	tlsRequired        bool
	compressMethods    []string
	pendingCompression compress.Engine
}

// Connect dials the configured server and begins stream negotiation. It
// returns once the TCP connection is established; negotiation continues
// asynchronously via the Chain's parser goroutine and the registered
// ConnectionListener callbacks report progress (OnConnect, OnResourceBind,
// ...).
func (s *Session) Connect() error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(stateDisconnected), int32(stateConnecting)) {
		return fmt.Errorf("xmpp: session already connecting or connected")
	}
	s.closeOnce = sync.Once{}
	s.mu.Lock()
	s.authed, s.resourceBound = false, false
	s.fullJID, s.resource, s.streamID = nil, "", ""
	s.mu.Unlock()
	s.fsm = &stateMachine{s: s, state: fsmStart}
	s.conn = transport.NewTCPConnection()
	s.chain = transport.NewChain(s.conn, s)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	if err := s.conn.Connect(addr, s.cfg.ConnectTimeout); err != nil {
		s.teardown(disconnectError(DNSError, err))
		return err
	}
	if err := s.openStream(); err != nil {
		s.teardown(disconnectError(IOError, err))
		return err
	}
	return nil
}

// openStream marks the session connected, calls every listener's
// OnConnect, and writes a fresh stream header. Chain implements
// transport.Listener and forwards parse events to us through the TagSink
// interface below; the socket-level connect is handled here instead,
// called from Connect once the TCP connection is up and from reopen after
// TLS, compression, and SASL success.
func (s *Session) openStream() error {
	atomic.StoreInt32(&s.state, int32(stateConnected))
	for _, l := range s.registry.connectionListeners {
		l.OnConnect()
	}
	_, err := stream.WriteOpen(streamWriter{s}, s.cfg.Origin.Domain(), s.cfg.DefaultNS, s.cfg.Lang.String())
	if err != nil {
		return err
	}
	s.fsm.state = fsmStreamOpenSent
	return nil
}

// streamWriter adapts Session.rawSend to io.Writer for stream.WriteOpen.
type streamWriter struct{ s *Session }

func (w streamWriter) Write(p []byte) (int, error) {
	if err := w.s.chain.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// OnStreamOpen implements transport.TagSink: the root <stream:stream> tag.
func (s *Session) OnStreamOpen(attrs []xml.Attr) {
	info, err := stream.ParseOpenAttrs(attrs)
	if err != nil {
		s.teardown(disconnectError(StreamVersionError, err))
		return
	}
	s.mu.Lock()
	if info.ID != "" {
		s.streamID = info.ID
	}
	s.streamVersion = info.Version
	s.mu.Unlock()

	if s.fsm.state == fsmStart {
		// We are the one who must open first (client role); this branch
		// only fires if the server's open somehow arrived before ours,
		// which openStream prevents, so treat it defensively as a
		// version check and move on.
		s.fsm.state = fsmStreamOpenSent
	}
}

// OnTag implements transport.TagSink for every depth-1 Tag other than the
// stream root.
func (s *Session) OnTag(t *stanza.Tag) {
	if t.Name == "error" && t.XMLNS == ns.Stream {
		serr := parseStreamErrorTag(t)
		s.teardown(disconnectError(StreamErr, serr))
		return
	}

	s.bumpStats(false, true, len(t.String()), false)

	if s.fsm.handleNegotiation(t) {
		return
	}

	s.dispatch(t)
}

// OnParseError implements transport.TagSink.
func (s *Session) OnParseError(err error) {
	if err == nil {
		return
	}
	s.teardown(disconnectError(ParseError, err))
}

// handleNegotiation is the FSM's hook for pre-SessionLive protocol tags:
// features, proceed/failure, compressed, challenge/success/failure,
// iq-bind results, and SM ack/enabled/resumed. Returns true if it consumed
// the tag.
func (fsm *stateMachine) handleNegotiation(t *stanza.Tag) bool {
	s := fsm.s
	switch {
	case t.Name == "features" && t.XMLNS == ns.Stream:
		fsm.handleFeatures(t)
		return true
	case t.Name == "proceed" && t.XMLNS == ns.StartTLS:
		fsm.beginTLS()
		return true
	case t.Name == "failure" && t.XMLNS == ns.StartTLS:
		s.teardown(disconnectError(TLSFailed, nil))
		return true
	case t.Name == "compressed" && t.XMLNS == ns.CompressProtocol:
		fsm.activateCompression()
		return true
	case t.Name == "failure" && t.XMLNS == ns.CompressProtocol:
		s.teardown(disconnectError(CompressionFailed, nil))
		return true
	case t.Name == "challenge" && t.XMLNS == ns.SASL:
		fsm.handleChallenge(t)
		return true
	case t.Name == "success" && t.XMLNS == ns.SASL:
		fsm.handleSASLSuccess(t)
		return true
	case t.Name == "failure" && t.XMLNS == ns.SASL:
		fail := sasl.ParseFailure(t)
		s.teardown(disconnectError(AuthenticationFailed, fail))
		return true
	case t.Name == "iq" && fsm.state == fsmBindNegotiating:
		fsm.handleBindResult(t)
		return true
	case t.Name == "enabled" && t.XMLNS == ns.SM:
		s.handleSMEnabled(t)
		return true
	case t.Name == "resumed" && t.XMLNS == ns.SM:
		s.handleSMResumed(t)
		return true
	case t.Name == "a" && t.XMLNS == ns.SM:
		s.handleSMAck(t)
		return true
	case t.Name == "r" && t.XMLNS == ns.SM:
		s.sendSMAck()
		return true
	}
	return false
}

// handleFeatures inspects <stream:features/> and decides the next
// negotiation step: STARTTLS, compression, SASL, or bind, in that fixed
// priority order (each must complete, possibly requiring a stream reopen,
// before the next is attempted).
func (fsm *stateMachine) handleFeatures(t *stanza.Tag) {
	s := fsm.s
	fsm.state = fsmFeaturesReceived

	if tlsFeat := t.FindChild("starttls", ns.StartTLS); tlsFeat != nil && s.cfg.TLSPolicy != TLSDisabled && !s.encryptionActive {
		fsm.tlsRequired = tlsFeat.FindChild("required", ns.StartTLS) != nil
		fsm.requestTLS()
		return
	}
	if s.cfg.TLSPolicy == TLSRequired && !s.encryptionActive {
		s.teardown(disconnectError(TLSFailed, fmt.Errorf("xmpp: server does not offer STARTTLS")))
		return
	}

	if compFeat := t.FindChild("compression", ns.CompressFeature); compFeat != nil && s.cfg.CompressEnabled && !s.compressionActive {
		var methods []string
		for _, m := range compFeat.Children {
			if m.Name == "method" {
				methods = append(methods, m.CData)
			}
		}
		fsm.compressMethods = methods
		if fsm.requestCompression(methods) {
			return
		}
	}

	if mechTag := t.FindChild("mechanisms", ns.SASL); mechTag != nil && s.cfg.SASLEnabled && !s.authed {
		var mechs []string
		for _, m := range mechTag.Children {
			if m.Name == "mechanism" {
				mechs = append(mechs, m.CData)
			}
		}
		fsm.mechanisms = mechs
		fsm.startSASL(mechs)
		return
	}

	if s.authed {
		fsm.requestBind()
		return
	}

	s.teardown(disconnectError(NoSupportedAuth, fmt.Errorf("xmpp: server offered no usable SASL mechanisms")))
}

func (fsm *stateMachine) requestTLS() {
	s := fsm.s
	fsm.state = fsmTLSNegotiating
	if err := s.chain.Send([]byte(`<starttls xmlns='` + ns.StartTLS + `'/>`)); err != nil {
		s.teardown(disconnectError(IOError, err))
	}
}

func (fsm *stateMachine) beginTLS() {
	s := fsm.s
	cfg := s.cfg.tlsConfig()
	if err := s.tls.Init(cfg); err != nil {
		s.teardown(disconnectError(TLSFailed, err))
		return
	}
	info, err := s.tls.Handshake(s.conn, false)
	if err != nil {
		s.teardown(disconnectError(TLSFailed, err))
		return
	}
	approved := true
	for _, l := range s.registry.connectionListeners {
		if !l.OnTLSConnect(info) {
			approved = false
		}
	}
	if !approved {
		s.teardown(disconnectError(TLSFailed, fmt.Errorf("xmpp: certificate rejected by application")))
		return
	}
	s.mu.Lock()
	s.encryptionActive = true
	s.channelBindingType = s.tls.ChannelBindingType()
	s.channelBinding = s.tls.ChannelBinding()
	s.mu.Unlock()
	fsm.reopen()
}

func (fsm *stateMachine) requestCompression(methods []string) bool {
	s := fsm.s
	var engine compress.Engine
	for _, m := range methods {
		switch m {
		case "zlib":
			engine = compress.NewZlib()
		case "lzw":
			if engine == nil {
				engine = compress.NewLZW()
			}
		}
		if engine != nil {
			break
		}
	}
	if engine == nil {
		return false
	}
	fsm.state = fsmCompressionNegotiating
	fsm.pendingCompression = engine
	err := s.chain.Send([]byte(`<compress xmlns='` + ns.CompressProtocol + `'><method>` + engine.Name() + `</method></compress>`))
	if err != nil {
		s.teardown(disconnectError(IOError, err))
	}
	return true
}

func (fsm *stateMachine) activateCompression() {
	s := fsm.s
	if fsm.pendingCompression == nil {
		fsm.pendingCompression = compress.NewZlib()
	}
	if err := s.chain.EnableCompression(fsm.pendingCompression); err != nil {
		s.teardown(disconnectError(CompressionFailed, err))
		return
	}
	s.mu.Lock()
	s.compressionActive = true
	s.mu.Unlock()
	fsm.reopen()
}

// reopen resets the parser and sends a fresh stream header, required after
// TLS activation, compression activation, and SASL success.
func (fsm *stateMachine) reopen() {
	s := fsm.s
	s.chain.Reopen()
	fsm.state = fsmStreamOpenSent
	if err := s.openStream(); err != nil {
		s.teardown(disconnectError(IOError, err))
	}
}

func (fsm *stateMachine) startSASL(offered []string) {
	s := fsm.s
	fsm.state = fsmSASLAuthenticating
	requireCB := s.encryptionActive && s.channelBindingType != ""
	mech := sasl.Negotiate(offered, requireCB)
	if mech == nil && requireCB {
		mech = sasl.Negotiate(offered, false)
	}
	if mech == nil {
		s.teardown(disconnectError(NoSupportedAuth, nil))
		return
	}
	s.mu.Lock()
	s.selectedMech = mech
	username := s.cfg.Authzid
	s.saslSession = &sasl.Session{
		Username: s.cfg.Origin.Node(),
		Password: s.cfg.Password,
		Authzid:  username,
		Domain:   s.cfg.Origin.Domain(),
		BareJID:  s.cfg.Origin.Bare().String(),
	}
	if s.encryptionActive {
		s.saslSession.CBindData = s.channelBinding
	}
	sess := s.saslSession
	s.mu.Unlock()

	resp, err := mech.Start(sess)
	if err != nil {
		s.teardown(disconnectError(AuthenticationFailed, err))
		return
	}
	s.sendSASLAuth(mech.Name(), resp)
}

func (s *Session) sendSASLAuth(mechName string, payload []byte) {
	b64 := ""
	if payload != nil {
		b64 = base64.StdEncoding.EncodeToString(payload)
	}
	tag := `<auth xmlns='` + ns.SASL + `' mechanism='` + mechName + `'>` + b64 + `</auth>`
	if err := s.chain.Send([]byte(tag)); err != nil {
		s.teardown(disconnectError(IOError, err))
	}
}

func (fsm *stateMachine) handleChallenge(t *stanza.Tag) {
	s := fsm.s
	challenge, err := base64.StdEncoding.DecodeString(t.CData)
	if err != nil {
		s.teardown(disconnectError(AuthenticationFailed, err))
		return
	}
	resp, _, err := s.selectedMech.Next(s.saslSession, challenge)
	if err != nil {
		s.abortSASL(err)
		return
	}
	b64 := base64.StdEncoding.EncodeToString(resp)
	if err := s.chain.Send([]byte(`<response xmlns='` + ns.SASL + `'>` + b64 + `</response>`)); err != nil {
		s.teardown(disconnectError(IOError, err))
	}
}

func (s *Session) abortSASL(cause error) {
	s.chain.Send([]byte(`<abort xmlns='` + ns.SASL + `'/>`))
	s.teardown(disconnectError(AuthenticationFailed, cause))
}

// handleSASLSuccess finishes the exchange. Some mechanisms (SCRAM) embed a
// final server-verification message in <success/>'s CDATA that the client
// must check before trusting the session: RFC 5802 §5 step 4 requires
// confirming the server's signature, the only proof the server actually
// knew the shared secret rather than just relaying the client's own proof.
func (fsm *stateMachine) handleSASLSuccess(t *stanza.Tag) {
	s := fsm.s
	if t.CData != "" && s.selectedMech != nil && s.saslSession != nil {
		payload, err := base64.StdEncoding.DecodeString(t.CData)
		if err != nil {
			s.teardown(disconnectError(AuthenticationFailed, err))
			return
		}
		if _, _, err := s.selectedMech.Next(s.saslSession, payload); err != nil {
			s.teardown(disconnectError(AuthenticationFailed, fmt.Errorf("sasl: could not verify server: %w", err)))
			return
		}
	}
	s.mu.Lock()
	s.authed = true
	s.mu.Unlock()
	fsm.reopen()
}

func (fsm *stateMachine) requestBind() {
	s := fsm.s
	fsm.state = fsmBindNegotiating
	id := s.nextStanzaID()
	s.registry.RegisterIDHandler(id, nil, 0, true)
	resourceElem := ""
	if s.cfg.Origin.Resource() != "" {
		resourceElem = `<resource>` + xmlEscape(s.cfg.Origin.Resource()) + `</resource>`
	}
	tag := `<iq type='set' id='` + id + `'><bind xmlns='` + ns.Bind + `'>` + resourceElem + `</bind></iq>`
	if err := s.chain.Send([]byte(tag)); err != nil {
		s.teardown(disconnectError(IOError, err))
	}
}

func (fsm *stateMachine) handleBindResult(t *stanza.Tag) {
	s := fsm.s
	iq, err := stanza.NewIQ(t)
	if err != nil {
		s.teardown(disconnectError(ParseError, err))
		return
	}
	if iq.Type == string(stanza.IQError) {
		for _, l := range s.registry.connectionListeners {
			l.OnResourceBindError(fmt.Errorf("xmpp: resource bind failed: %s", t.String()))
		}
		s.teardown(disconnectError(AuthenticationFailed, fmt.Errorf("resource bind rejected")))
		return
	}
	bindEl := t.FindChild("bind", ns.Bind)
	var full string
	if bindEl != nil {
		if j := bindEl.FindChild("jid", ""); j != nil {
			full = j.CData
		}
	}
	if full == "" {
		full = s.cfg.Origin.String()
	}
	boundJID, err := jid.Parse(full)
	if err != nil {
		boundJID = s.cfg.Origin
	}
	s.mu.Lock()
	s.resourceBound = true
	s.fullJID = boundJID
	s.resource = boundJID.Resource()
	s.mu.Unlock()

	for _, l := range s.registry.connectionListeners {
		l.OnResourceBind(boundJID.Resource())
	}
	fsm.state = fsmSessionLive
	for _, l := range s.registry.connectionListeners {
		l.OnStreamEvent("session-live")
	}
}

// teardown implements the single disconnect() primitive: for a parse
// error, send a <stream:error><restricted-xml/></stream:error> first, then
// send </stream:stream> (unless the failure was a TLS handshake failure
// per spec), close the connection, clean up chain stages, and fan out
// OnDisconnect.
func (s *Session) teardown(reason *DisconnectError) {
	s.closeOnce.Do(func() {
		if s.fsm != nil {
			s.fsm.state = fsmClosing
		}
		if s.chain != nil && reason.Reason != TLSFailed {
			if reason.Reason == ParseError {
				var buf bytes.Buffer
				stream.RestrictedXML.WriteXML(&buf)
				s.chain.Send(buf.Bytes())
			}
			s.chain.Send([]byte(`</stream:stream>`))
		}
		if s.conn != nil {
			s.conn.Disconnect()
			s.conn.Cleanup()
		}
		if s.tls != nil {
			s.tls.Cleanup()
		}
		s.mu.Lock()
		s.encryptionActive = false
		s.compressionActive = false
		s.sm = smState{}
		s.mu.Unlock()
		atomic.StoreInt32(&s.state, int32(stateDisconnected))
		if s.fsm != nil {
			s.fsm.state = fsmClosed
		}
		for _, l := range s.registry.connectionListeners {
			l.OnDisconnect(reason)
		}
	})
}

// Disconnect tears the session down from the application side with
// UserDisconnected as the reason.
func (s *Session) Disconnect() {
	s.teardown(disconnectError(UserDisconnected, nil))
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
