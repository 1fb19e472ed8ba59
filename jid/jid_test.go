package jid_test

import (
	"testing"

	"git.sr.ht/~coredump/xmppcore/jid"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"example.net",
		"romeo@example.net",
		"example.net/resource",
		"romeo@example.net/resource",
	}
	for _, s := range cases {
		j, err := jid.Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) = %v", s, err)
		}
		if got := j.String(); got != s {
			t.Errorf("Parse(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestBare(t *testing.T) {
	j := jid.MustParse("romeo@example.net/orchard")
	bare := j.Bare()
	if got, want := bare.String(), "romeo@example.net"; got != want {
		t.Errorf("Bare() = %q, want %q", got, want)
	}
	if bare.Resource() != "" {
		t.Errorf("Bare().Resource() = %q, want empty", bare.Resource())
	}
}

func TestEqual(t *testing.T) {
	a := jid.MustParse("romeo@example.net/orchard")
	b := jid.MustParse("romeo@example.net/orchard")
	c := jid.MustParse("juliet@example.net/orchard")
	if !a.Equal(b) {
		t.Error("expected equal JIDs to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected different JIDs to compare unequal")
	}
}

func TestEmptyParts(t *testing.T) {
	cases := []string{"@example.net", "example.net/", "romeo@"}
	for _, s := range cases {
		if _, err := jid.Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestDomainOnly(t *testing.T) {
	j := jid.MustParse("example.net")
	if j.Node() != "" || j.Resource() != "" {
		t.Errorf("expected domain-only JID, got node=%q resource=%q", j.Node(), j.Resource())
	}
}

func TestWithResource(t *testing.T) {
	j := jid.MustParse("romeo@example.net")
	full, err := j.WithResource("orchard")
	if err != nil {
		t.Fatalf("WithResource: %v", err)
	}
	if got, want := full.String(), "romeo@example.net/orchard"; got != want {
		t.Errorf("WithResource = %q, want %q", got, want)
	}
}
