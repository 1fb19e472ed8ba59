package stanza

// IQType is the RFC 6120 §8.2.3 'type' attribute of an <iq/>.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// IQ is an info/query stanza. Payload is the first child that is not
// <error/>, whatever the type; Err is the parsed <error/> child, if any. An
// error response that echoes the request's payload has both set, and a
// type='result' IQ may carry neither.
type IQ struct {
	Stanza
	Payload *Tag
	Err     *Error
}

// NewIQ parses an <iq/> Tag into an IQ. RFC 6120 §8.2.3 requires exactly one
// child on get/set; this keeps the first non-error child as Payload and
// leaves extension code to look at Stanza.Tag directly for anything more
// exotic.
func NewIQ(t *Tag) (*IQ, error) {
	base, err := FromTag(KindIQ, t)
	if err != nil {
		return nil, err
	}
	iq := &IQ{Stanza: base}
	errEl, err := ParseError(t)
	if err != nil {
		return nil, err
	}
	iq.Err = errEl
	for _, c := range t.Children {
		if c.Name == "error" {
			continue
		}
		iq.Payload = c
		break
	}
	return iq, nil
}

// Result builds a type='result' response IQ addressed back to the sender of
// iq, optionally carrying payload.
func (iq *IQ) Result(payload *Tag) *Tag {
	r := NewTag("iq", "")
	r.SetAttr("type", string(IQResult))
	r.SetAttr("id", iq.ID)
	if iq.From != nil {
		r.SetAttr("to", iq.From.String())
	}
	if payload != nil {
		r.AddChild(payload)
	}
	return r
}

// ErrorReply builds a type='error' response IQ addressed back to the sender
// of iq, echoing its original payload as RFC 6120 §8.3.1 requires.
func (iq *IQ) ErrorReply(typ ErrorType, condition, text string) *Tag {
	r := NewTag("iq", "")
	r.SetAttr("type", string(IQError))
	r.SetAttr("id", iq.ID)
	if iq.From != nil {
		r.SetAttr("to", iq.From.String())
	}
	if iq.Payload != nil {
		r.AddChild(iq.Payload)
	}
	r.AddChild(NewError(typ, condition, text))
	return r
}
