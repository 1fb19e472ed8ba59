package transport_test

import (
	"net"
	"testing"
	"time"

	"git.sr.ht/~coredump/xmppcore/transport"
)

type recordingListener struct {
	received chan []byte
}

func (l *recordingListener) OnConnect()            {}
func (l *recordingListener) OnDisconnect(err error) {}
func (l *recordingListener) OnReceived(p []byte) {
	cp := make([]byte, len(p))
	copy(cp, p)
	l.received <- cp
}

// TestRebindStopsPriorReader guards the handoff Rebind performs when
// splicing in a new conn (e.g. a *tls.Conn after STARTTLS): the read loop
// on the outgoing conn must fully stop before the new one starts, or the
// two would race to read the same underlying socket.
func TestRebindStopsPriorReader(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	conn := transport.NewTCPConnection()
	lst := &recordingListener{received: make(chan []byte, 4)}
	conn.SetListener(lst)
	conn.Rebind(a)

	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case got := <-lst.received:
		if string(got) != "hello" {
			t.Fatalf("got %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery on first conn")
	}

	c, d := net.Pipe()
	defer c.Close()
	defer d.Close()
	conn.Rebind(c)

	if _, err := d.Write([]byte("second")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case got := <-lst.received:
		if string(got) != "second" {
			t.Fatalf("got %q, want second", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery on rebound conn")
	}

	// Nothing should still be reading the superseded pipe; a write on it
	// should never reach the listener.
	go b.Write([]byte("stale"))
	select {
	case got := <-lst.received:
		t.Fatalf("stale conn delivered data after rebind: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}
