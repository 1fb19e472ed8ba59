package xmpp

import (
	"git.sr.ht/~coredump/xmppcore/stanza"
	"git.sr.ht/~coredump/xmppcore/stream"
)

// parseStreamErrorTag converts a parsed <stream:error/> Tag into a
// stream.Error, per RFC 6120 §4.9: the first non-text child's local name is
// the condition, and any <text/> children are collected by xml:lang.
func parseStreamErrorTag(t *stanza.Tag) stream.Error {
	e := stream.Error{Text: make(map[string]string)}
	for _, c := range t.Children {
		switch {
		case c.Name == "text":
			lang := c.GetAttr("lang")
			if lang == "" {
				lang = "default"
			}
			e.Text[lang] = c.CData
		case e.Condition == "":
			e.Condition = c.Name
			if c.Name == "see-other-host" {
				e.Payload = c.CData
			}
		}
	}
	return e
}
