package mux_test

import (
	"testing"

	"git.sr.ht/~coredump/xmppcore/mux"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

func TestExactMatchWins(t *testing.T) {
	var gotExact, gotNSWild bool
	m := mux.New(
		mux.HandleFunc("query", "urn:example:foo", func(*stanza.Tag) { gotExact = true }),
		mux.HandleFunc("", "urn:example:foo", func(*stanza.Tag) { gotNSWild = true }),
	)
	m.HandleTag(stanza.NewTag("query", "urn:example:foo"))
	if !gotExact || gotNSWild {
		t.Fatalf("exact match should win: gotExact=%v gotNSWild=%v", gotExact, gotNSWild)
	}
}

func TestNamespaceWildcard(t *testing.T) {
	var got string
	m := mux.New(
		mux.HandleFunc("", "urn:example:foo", func(tag *stanza.Tag) { got = tag.Name }),
	)
	m.HandleTag(stanza.NewTag("anything", "urn:example:foo"))
	if got != "anything" {
		t.Fatalf("namespace wildcard did not match, got %q", got)
	}
}

func TestNameWildcard(t *testing.T) {
	var got string
	m := mux.New(
		mux.HandleFunc("query", "", func(tag *stanza.Tag) { got = tag.XMLNS }),
	)
	m.HandleTag(stanza.NewTag("query", "urn:example:bar"))
	if got != "urn:example:bar" {
		t.Fatalf("name wildcard did not match, got %q", got)
	}
}

func TestFallback(t *testing.T) {
	var hit bool
	m := mux.New(mux.Fallback(mux.HandlerFunc(func(*stanza.Tag) { hit = true })))
	m.HandleTag(stanza.NewTag("unregistered", "urn:example:baz"))
	if !hit {
		t.Fatalf("fallback was not invoked")
	}
}

func TestHandleDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	mux.New(
		mux.HandleFunc("query", "urn:example:foo", func(*stanza.Tag) {}),
		mux.HandleFunc("query", "urn:example:foo", func(*stanza.Tag) {}),
	)
}
