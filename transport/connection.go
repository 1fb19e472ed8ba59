// Package transport implements the TCP/TLS/compression transform chain that
// sits beneath the stream engine: a bidirectional byte pipeline (socket ⇄
// TLS ⇄ compression ⇄ XML parser) whose three stages may each be active or
// bypassed independently, and whose activation order is fixed for the
// lifetime of one connection.
package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Listener receives raw-byte notifications from a Connection. A stream
// engine implements this to feed received bytes into its transform chain.
type Listener interface {
	OnConnect()
	OnDisconnect(reason error)
	OnReceived(p []byte)
}

// Connection is the socket collaborator the stream engine treats as
// external: connect/send/recv plus connect/disconnect/receive callbacks.
// *TCPConnection below is the default, always-available implementation;
// applications needing a mock transport (tests, a WebSocket binding)
// implement this interface directly.
type Connection interface {
	State() State
	Connect(addr string, timeout time.Duration) error
	Disconnect()
	Cleanup()
	Send(p []byte) error
	Statistics() (bytesIn, bytesOut uint64)
	SetListener(l Listener)
}

// TCPConnection is the default Connection: a plain net.Conn with a
// background read loop that fans received bytes out to its Listener.
type TCPConnection struct {
	mu    sync.Mutex
	conn  net.Conn
	state int32

	listener Listener

	bytesIn  uint64
	bytesOut uint64

	closeOnce sync.Once

	// gen and loopDone coordinate the handoff at Rebind: bumping gen plus
	// forcing a read deadline unblocks the outgoing readLoop's pending
	// Read promptly, and loopDone lets a caller (the TLS handshake) wait
	// until that goroutine has actually stopped touching the socket
	// before it starts reading for itself.
	gen      uint64
	loopDone chan struct{}
}

// NewTCPConnection returns an unconnected TCPConnection.
func NewTCPConnection() *TCPConnection {
	return &TCPConnection{}
}

func (c *TCPConnection) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *TCPConnection) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// Connect dials addr (host:port) and starts the background read loop.
func (c *TCPConnection) Connect(addr string, timeout time.Duration) error {
	atomic.StoreInt32(&c.state, int32(Connecting))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		atomic.StoreInt32(&c.state, int32(Disconnected))
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	done := make(chan struct{})
	c.loopDone = done
	listener := c.listener
	c.mu.Unlock()

	atomic.StoreInt32(&c.state, int32(Connected))
	if listener != nil {
		listener.OnConnect()
	}
	go c.readLoop(conn, gen, done)
	return nil
}

func (c *TCPConnection) readLoop(conn net.Conn, gen uint64, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		c.mu.Lock()
		current := c.gen
		listener := c.listener
		c.mu.Unlock()
		if current != gen {
			// Superseded by Rebind: either a forced deadline unblocked us,
			// or the conn was replaced outright. Either way the new owner
			// (a TLS handshake or the new read loop) is now responsible
			// for this socket; stop touching it.
			return
		}
		if n > 0 {
			atomic.AddUint64(&c.bytesIn, uint64(n))
			if listener != nil {
				cp := make([]byte, n)
				copy(cp, buf[:n])
				listener.OnReceived(cp)
			}
		}
		if err != nil {
			c.teardown(err)
			return
		}
	}
}

// pauseForHandoff stops the active read loop and waits for it to exit,
// so a caller about to read the raw conn itself (a STARTTLS handshake)
// never races the background loop for incoming bytes. It forces a read
// deadline to unblock a Read call that's already in flight.
func (c *TCPConnection) pauseForHandoff() {
	c.mu.Lock()
	c.gen++
	conn := c.conn
	done := c.loopDone
	c.mu.Unlock()
	if conn != nil {
		conn.SetReadDeadline(time.Now())
	}
	if done != nil {
		<-done
	}
	if conn != nil {
		conn.SetReadDeadline(time.Time{})
	}
}

func (c *TCPConnection) teardown(reason error) {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(Disconnected))
		c.mu.Lock()
		listener := c.listener
		c.mu.Unlock()
		if listener != nil {
			listener.OnDisconnect(reason)
		}
	})
}

// Send writes p to the socket.
func (c *TCPConnection) Send(p []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	n, err := conn.Write(p)
	atomic.AddUint64(&c.bytesOut, uint64(n))
	return err
}

// Disconnect closes the underlying socket; the read loop's resulting error
// drives the OnDisconnect callback.
func (c *TCPConnection) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Cleanup releases the connection; after Cleanup the Connection must not be
// reused.
func (c *TCPConnection) Cleanup() {
	c.Disconnect()
}

func (c *TCPConnection) Statistics() (bytesIn, bytesOut uint64) {
	return atomic.LoadUint64(&c.bytesIn), atomic.LoadUint64(&c.bytesOut)
}

// Rebind swaps the underlying net.Conn for one wrapping it (used to splice
// in a *tls.Conn after a successful STARTTLS handshake; compression is a
// Chain transform and does not go through Rebind) and restarts the read
// loop against the new conn. The outgoing read loop is stopped and
// confirmed exited before the new one starts, so the two never read the
// same underlying socket concurrently.
func (c *TCPConnection) Rebind(conn net.Conn) {
	c.pauseForHandoff()

	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	done := make(chan struct{})
	c.loopDone = done
	c.mu.Unlock()

	go c.readLoop(conn, gen, done)
}

// Raw returns the current underlying net.Conn, e.g. for handing to
// tls.Client/tls.Server during a STARTTLS handshake. The caller must not
// read from it concurrently with the active read loop; PauseForHandshake
// stops the read loop first.
func (c *TCPConnection) Raw() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// PauseForHandshake stops the active read loop and waits for it to exit,
// handing exclusive read ownership of Raw()'s conn to the caller. Call
// this before driving a TLS handshake directly on Raw(); Rebind then
// resumes background reads against the post-handshake conn.
func (c *TCPConnection) PauseForHandshake() {
	c.pauseForHandoff()
}
