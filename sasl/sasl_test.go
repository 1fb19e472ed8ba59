package sasl

import (
	"encoding/base64"
	"testing"
)

func TestScramClientFirstMessage(t *testing.T) {
	restore := scramNonce
	scramNonce = func() string { return "fyko+d2lbbFgONRv9qkxdawL" }
	defer func() { scramNonce = restore }()

	s := &Session{Username: "user"}
	msg, err := ScramSHA1{}.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := "n,,n=user,r=fyko+d2lbbFgONRv9qkxdawL"
	if string(msg) != want {
		t.Fatalf("client-first = %q, want %q", msg, want)
	}
}

func TestScramServerSignature(t *testing.T) {
	s := &Session{
		Username:               "user",
		Password:               "pencil",
		GS2Header:              "n,,",
		ClientFirstMessageBare: "n=user,r=fyko+d2lbbFgONRv9qkxdawL",
	}
	serverFirst := "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"

	_, done, err := scramClientFinal(s, []byte(serverFirst), false)
	if err != nil {
		t.Fatalf("scramClientFinal: %v", err)
	}
	if done {
		t.Fatalf("scramClientFinal should not be done yet")
	}

	gotSig := base64.StdEncoding.EncodeToString(s.ServerSignature)
	wantSig := "rmF9pqV8S7suAoZWja4dJRkFsKQ="
	if gotSig != wantSig {
		t.Fatalf("ServerSignature = %s, want %s", gotSig, wantSig)
	}

	_, done, err = scramVerifyServer(s, []byte("v="+wantSig))
	if err != nil {
		t.Fatalf("scramVerifyServer: %v", err)
	}
	if !done {
		t.Fatalf("expected scramVerifyServer to finish the exchange")
	}
}

func TestScramServerSignatureMismatch(t *testing.T) {
	s := &Session{ServerSignature: []byte("expected")}
	_, _, err := scramVerifyServer(s, []byte("v=d3Jvbmc="))
	if err != ErrAborted {
		t.Fatalf("expected ErrAborted on signature mismatch, got %v", err)
	}
}

func TestDigestMD5ResponseDeterministic(t *testing.T) {
	r1 := digestResponse("user", "example.org", "secret", "nonce123", "cnonce456", "AUTHENTICATE", "xmpp/example.org", "00000001")
	r2 := digestResponse("user", "example.org", "secret", "nonce123", "cnonce456", "AUTHENTICATE", "xmpp/example.org", "00000001")
	if r1 != r2 {
		t.Fatalf("digestResponse not deterministic: %s != %s", r1, r2)
	}
	r3 := digestResponse("user", "example.org", "different", "nonce123", "cnonce456", "AUTHENTICATE", "xmpp/example.org", "00000001")
	if r1 == r3 {
		t.Fatalf("digestResponse did not change with password")
	}
}

func TestPlainInitialResponse(t *testing.T) {
	s := &Session{Username: "user", Password: "pencil"}
	msg, err := Plain{}.Start(s)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := "\x00user\x00pencil"
	if string(msg) != want {
		t.Fatalf("PLAIN response = %q, want %q", msg, want)
	}
}

func TestNegotiatePrefersScramPlusWhenBound(t *testing.T) {
	offered := []string{"PLAIN", "SCRAM-SHA-1", "SCRAM-SHA-1-PLUS", "DIGEST-MD5"}
	m := Negotiate(offered, true)
	if m == nil || m.Name() != "SCRAM-SHA-1-PLUS" {
		t.Fatalf("expected SCRAM-SHA-1-PLUS, got %v", m)
	}
	m = Negotiate(offered, false)
	if m == nil || m.Name() != "SCRAM-SHA-1" {
		t.Fatalf("expected SCRAM-SHA-1 without channel binding, got %v", m)
	}
}
