package ping_test

import (
	"testing"

	"git.sr.ht/~coredump/xmppcore/ping"
	"git.sr.ht/~coredump/xmppcore/stanza"
)

func TestPingRequestShape(t *testing.T) {
	req := stanza.NewTag("iq", "")
	req.SetAttr("type", string(stanza.IQGet))
	req.SetAttr("id", "ping1")
	req.AddChild(stanza.NewTag("ping", ping.NS))

	iq, err := stanza.NewIQ(req)
	if err != nil {
		t.Fatalf("NewIQ: %v", err)
	}
	if iq.Payload == nil || iq.Payload.Name != "ping" || iq.Payload.XMLNS != ping.NS {
		t.Fatalf("unexpected payload: %#v", iq.Payload)
	}

	reply := iq.Result(nil)
	if reply.GetAttr("type") != string(stanza.IQResult) {
		t.Fatalf("reply type = %q, want result", reply.GetAttr("type"))
	}
	if reply.GetAttr("id") != "ping1" {
		t.Fatalf("reply id = %q, want ping1", reply.GetAttr("id"))
	}
	if len(reply.Children) != 0 {
		t.Fatalf("ping result should carry no payload, got %d children", len(reply.Children))
	}
}
