package stanza_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"git.sr.ht/~coredump/xmppcore/stanza"
)

func decodeOne(t *testing.T, s string) *stanza.Tag {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(s))
	tok, err := d.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		t.Fatalf("first token was not a StartElement: %#v", tok)
	}
	tag, err := stanza.ReadTag(d, start)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	return tag
}

func TestReadTagNested(t *testing.T) {
	tag := decodeOne(t, `<iq type='get' id='x1'><query xmlns='jabber:iq:roster'/></iq>`)
	if tag.Name != "iq" || tag.GetAttr("type") != "get" || tag.GetAttr("id") != "x1" {
		t.Fatalf("unexpected tag: %+v", tag)
	}
	if len(tag.Children) != 1 || tag.Children[0].Name != "query" {
		t.Fatalf("expected one query child, got %+v", tag.Children)
	}
}

func TestReadTagCData(t *testing.T) {
	tag := decodeOne(t, `<message><body>hello &amp; welcome</body></message>`)
	body := tag.FindChild("body", "")
	if body == nil || body.CData != "hello & welcome" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTagStringRoundTrip(t *testing.T) {
	tag := stanza.NewTag("presence", "")
	tag.SetAttr("to", "juliet@example.com")
	show := stanza.NewTag("show", "")
	show.CData = "away"
	tag.AddChild(show)

	out := tag.String()
	reparsed := decodeOne(t, out)
	if reparsed.GetAttr("to") != "juliet@example.com" {
		t.Fatalf("round trip lost 'to': %s", out)
	}
	if s := reparsed.FindChild("show", ""); s == nil || s.CData != "away" {
		t.Fatalf("round trip lost show: %s", out)
	}
}

func TestIQResultAndErrorReply(t *testing.T) {
	tag := decodeOne(t, `<iq type='get' id='ping1' from='juliet@example.com/balcony'><ping xmlns='urn:xmpp:ping'/></iq>`)
	iq, err := stanza.NewIQ(tag)
	if err != nil {
		t.Fatalf("NewIQ: %v", err)
	}
	result := iq.Result(nil)
	if result.GetAttr("type") != "result" || result.GetAttr("id") != "ping1" {
		t.Fatalf("bad result iq: %s", result.String())
	}
	if result.GetAttr("to") != "juliet@example.com/balcony" {
		t.Fatalf("result not addressed back to sender: %s", result.String())
	}

	errReply := iq.ErrorReply(stanza.ErrorCancel, "service-unavailable", "")
	if errReply.GetAttr("type") != "error" {
		t.Fatalf("bad error iq: %s", errReply.String())
	}
}

func TestSubscriptionReply(t *testing.T) {
	tag := decodeOne(t, `<presence type='subscribe' from='romeo@example.net'/>`)
	sub, err := stanza.NewSubscription(tag)
	if err != nil {
		t.Fatalf("NewSubscription: %v", err)
	}
	reply := sub.Reply(true)
	if reply.GetAttr("type") != string(stanza.PresenceSubscribed) {
		t.Fatalf("expected subscribed reply, got %s", reply.String())
	}
}
