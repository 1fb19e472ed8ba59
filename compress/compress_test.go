package compress_test

import (
	"bytes"
	"testing"

	"git.sr.ht/~coredump/xmppcore/compress"
)

func roundTrip(t *testing.T, mk func() compress.Engine) {
	t.Helper()
	enc := mk()
	if err := enc.Init(); err != nil {
		t.Fatalf("Init (encoder): %v", err)
	}
	defer enc.Cleanup()

	dec := mk()
	if err := dec.Init(); err != nil {
		t.Fatalf("Init (decoder): %v", err)
	}
	defer dec.Cleanup()

	msg := []byte("<message><body>hello world</body></message>")
	compressed, err := enc.Compress(msg)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatalf("Compress produced no bytes")
	}

	var out bytes.Buffer
	chunk, err := dec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	out.Write(chunk)
	if out.String() != string(msg) {
		t.Fatalf("round trip = %q, want %q", out.String(), msg)
	}
}

func TestZlibRoundTrip(t *testing.T) {
	roundTrip(t, compress.NewZlib)
}

func TestLZWRoundTrip(t *testing.T) {
	roundTrip(t, compress.NewLZW)
}
