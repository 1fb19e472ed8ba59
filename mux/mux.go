// Package mux implements a wildcard XML-name multiplexer for
// foreign-namespace stream elements.
//
// A ServeMux matches the (name, namespace) of each top level element
// against a list of registered patterns and calls the handler for the
// pattern that most closely matches: full name+namespace takes precedence,
// then wildcard name (namespace only), then wildcard namespace (name
// only). It implements xmppcore.TagHandler so it can be installed as a
// Session's default tag handler for any foreign-namespace Tag that no
// exact registration claims.
package mux

import (
	"fmt"

	xmppcore "git.sr.ht/~coredump/xmppcore"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

// pattern is an XML name with either field possibly empty to mean
// "match any".
type pattern struct {
	name, xmlns string
}

// ServeMux is a wildcard Tag multiplexer.
type ServeMux struct {
	patterns map[pattern]xmppcore.TagHandler
	fallback xmppcore.TagHandler
}

// New allocates a ServeMux configured by opt.
func New(opt ...Option) *ServeMux {
	m := &ServeMux{patterns: make(map[pattern]xmppcore.TagHandler)}
	for _, o := range opt {
		o(m)
	}
	return m
}

// Handler returns the handler registered for (name, xmlns), trying an exact
// match, then a namespace-only wildcard, then a name-only wildcard. ok is
// false if nothing but the mux's fallback (never nil) matched.
func (m *ServeMux) Handler(name, xmlns string) (h xmppcore.TagHandler, ok bool) {
	if h, ok = m.patterns[pattern{name: name, xmlns: xmlns}]; ok {
		return h, true
	}
	if h, ok = m.patterns[pattern{xmlns: xmlns}]; ok {
		return h, true
	}
	if h, ok = m.patterns[pattern{name: name}]; ok {
		return h, true
	}
	if m.fallback != nil {
		return m.fallback, false
	}
	return xppNoop{}, false
}

// HandleTag implements xmppcore.TagHandler: it dispatches t to whichever
// registered pattern matches most specifically.
func (m *ServeMux) HandleTag(t *stanza.Tag) {
	h, _ := m.Handler(t.Name, t.XMLNS)
	h.HandleTag(t)
}

type xppNoop struct{}

func (xppNoop) HandleTag(*stanza.Tag) {}

// Option configures a ServeMux.
type Option func(m *ServeMux)

// Handle returns an option that routes Tags matching (name, xmlns) to h.
// Leaving name or xmlns empty registers a wildcard on that axis. Handle
// panics if a pattern is already registered, since two handlers silently
// splitting the same traffic is never what the caller wants.
func Handle(name, xmlns string, h xmppcore.TagHandler) Option {
	return func(m *ServeMux) {
		if h == nil {
			panic("mux: nil handler")
		}
		p := pattern{name: name, xmlns: xmlns}
		if _, ok := m.patterns[p]; ok {
			panic(fmt.Sprintf("mux: multiple registrations for {%s}%s", xmlns, name))
		}
		m.patterns[p] = h
	}
}

// HandleFunc is like Handle but takes a plain function.
func HandleFunc(name, xmlns string, f func(*stanza.Tag)) Option {
	return Handle(name, xmlns, HandlerFunc(f))
}

// Fallback returns an option that installs h as the handler consulted when
// no registered pattern matches at all.
func Fallback(h xmppcore.TagHandler) Option {
	return func(m *ServeMux) { m.fallback = h }
}

// HandlerFunc adapts a plain function to xmppcore.TagHandler, for use with
// Fallback or with a Session's AddTagHandler directly.
type HandlerFunc func(*stanza.Tag)

// HandleTag implements xmppcore.TagHandler.
func (f HandlerFunc) HandleTag(t *stanza.Tag) { f(t) }
