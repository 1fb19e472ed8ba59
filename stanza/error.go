package stanza

import "git.sr.ht/~coredump/xmppcore/internal/ns"

// ErrorType is the RFC 6120 §8.3.2 'type' attribute of a stanza-level
// <error/>: it tells the receiver whether retrying, modifying, or waiting
// could plausibly change the outcome.
type ErrorType string

// The five stanza error types defined by RFC 6120 §8.3.2.
const (
	ErrorAuth     ErrorType = "auth"
	ErrorCancel   ErrorType = "cancel"
	ErrorContinue ErrorType = "continue"
	ErrorModify   ErrorType = "modify"
	ErrorWait     ErrorType = "wait"
)

// Error is a parsed stanza-level <error/> element: a type, a defined
// condition from the RFC 6120 §8.3.3 namespace, and optional human-readable
// text.
type Error struct {
	Type      ErrorType
	Condition string
	Text      string
	AppDefined *Tag
}

func (e *Error) Error() string {
	if e.Text != "" {
		return e.Condition + ": " + e.Text
	}
	return e.Condition
}

// ParseError extracts a stanza Error from the <error/> child of t, if
// present; it returns (nil, nil) when the stanza carries no error.
func ParseError(t *Tag) (*Error, error) {
	et := t.FindChild("error", "")
	if et == nil {
		return nil, nil
	}
	e := &Error{Type: ErrorType(et.GetAttr("type"))}
	for _, c := range et.Children {
		if c.XMLNS != ns.Stanzas {
			e.AppDefined = c
			continue
		}
		switch c.Name {
		case "text":
			e.Text = c.CData
		default:
			e.Condition = c.Name
		}
	}
	return e, nil
}

// NewError builds a stanza-level <error/> tag of the given type and
// condition, suitable for attaching to an error-type response stanza.
func NewError(typ ErrorType, condition, text string) *Tag {
	t := NewTag("error", "")
	t.SetAttr("type", string(typ))
	t.AddChild(NewTag(condition, ns.Stanzas))
	if text != "" {
		txt := NewTag("text", ns.Stanzas)
		txt.CData = text
		t.AddChild(txt)
	}
	return t
}
