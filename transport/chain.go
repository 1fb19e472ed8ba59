package transport

import (
	"encoding/xml"
	"io"
	"sync"

	"git.sr.ht/~coredump/xmppcore/compress"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// TagSink receives each depth-1 Tag the chain's XML parser produces
// (stream opens and stanzas alike) plus fatal parse errors.
type TagSink interface {
	OnTag(t *stanza.Tag)
	OnStreamOpen(attrs []xml.Attr)
	OnParseError(err error)
}

// Chain is the bidirectional transform pipeline: socket ⇄ TLS ⇄
// compression ⇄ XML parser. TLS activation is a conn-splice handled by
// TCPConnection.Rebind (see transport/tls.go); only compression needs an
// explicit transform step here, since Go's crypto/tls already presents
// itself as a plain byte stream once the handshake completes.
type Chain struct {
	conn *TCPConnection
	sink TagSink

	mu                 sync.Mutex
	compressionActive  bool
	compressor         compress.Engine

	pw *io.PipeWriter
	pr *io.PipeReader
}

// NewChain wires conn's received bytes into a fresh XML parser feeding
// sink.
func NewChain(conn *TCPConnection, sink TagSink) *Chain {
	c := &Chain{conn: conn, sink: sink}
	conn.SetListener(c)
	c.resetParser()
	return c
}

// OnConnect and OnDisconnect satisfy Listener; the chain itself has no
// state to reset on connect, and a disconnect is reported to the sink
// through OnParseError(reason) so the state machine observes a single,
// uniform teardown path.
func (c *Chain) OnConnect() {}

func (c *Chain) OnDisconnect(reason error) {
	c.sink.OnParseError(reason)
}

// OnReceived implements Listener: decompress if active, then hand the
// plaintext XML bytes to the parser goroutine via the pipe.
func (c *Chain) OnReceived(p []byte) {
	c.mu.Lock()
	active := c.compressionActive
	comp := c.compressor
	pw := c.pw
	c.mu.Unlock()

	if active {
		var err error
		p, err = comp.Decompress(p)
		if err != nil {
			c.sink.OnParseError(err)
			return
		}
		if len(p) == 0 {
			return
		}
	}
	if _, err := pw.Write(p); err != nil {
		c.sink.OnParseError(err)
	}
}

// Send serializes and writes raw XML bytes through the outbound half of the
// chain: compress (if active) then the socket. TLS, when active, is
// already the thing the socket Send call writes into, since STARTTLS
// splices a *tls.Conn in place of the raw connection.
func (c *Chain) Send(p []byte) error {
	c.mu.Lock()
	active := c.compressionActive
	comp := c.compressor
	c.mu.Unlock()

	if active {
		var err error
		p, err = comp.Compress(p)
		if err != nil {
			return err
		}
	}
	return c.conn.Send(p)
}

// EnableCompression initializes engine and activates it for all subsequent
// traffic. It does not re-open the XML stream; receiving <compressed/>
// means "activate, then send a fresh stream header", and the caller sends
// that header through Reopen and a new stream open.
func (c *Chain) EnableCompression(engine compress.Engine) error {
	if err := engine.Init(); err != nil {
		return err
	}
	c.mu.Lock()
	c.compressionActive = true
	c.compressor = engine
	c.mu.Unlock()
	return nil
}

// CompressionActive reports whether a compression engine is in effect.
func (c *Chain) CompressionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compressionActive
}

// Reopen resets the XML parser's state, discarding any partially read
// token. It must be called immediately after TLS activation, compression
// activation, or SASL success, each of which requires a fresh stream
// header per RFC 6120 §4.3.5 / XEP-0138 §4 / RFC 6120 §6.4.6.
func (c *Chain) Reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Closing with io.ErrClosedPipe lets the old decodeLoop exit quietly; a
	// plain Close would surface as an "unexpected EOF" syntax error inside
	// the still-open stream element.
	c.pw.CloseWithError(io.ErrClosedPipe)
	c.resetParserLocked()
}

func (c *Chain) resetParser() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetParserLocked()
}

func (c *Chain) resetParserLocked() {
	pr, pw := io.Pipe()
	c.pr, c.pw = pr, pw
	go c.decodeLoop(pr)
}

func (c *Chain) decodeLoop(pr *io.PipeReader) {
	d := xml.NewDecoder(pr)
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			if err != io.EOF && err != io.ErrClosedPipe {
				c.sink.OnParseError(err)
			}
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && t.Name.Local == "stream" {
				c.sink.OnStreamOpen(t.Attr)
				continue
			}
			if depth == 1 {
				tag, err := stanza.ReadTag(d, t)
				if err != nil {
					c.sink.OnParseError(err)
					return
				}
				depth--
				c.sink.OnTag(tag)
				continue
			}
		case xml.EndElement:
			depth--
		}
	}
}
