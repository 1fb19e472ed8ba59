package stream_test

import (
	"encoding/xml"
	"reflect"
	"testing"

	"git.sr.ht/~coredump/xmppcore/stream"
)

func TestParseOpenAttrs(t *testing.T) {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: "s1"},
		{Name: xml.Name{Local: "version"}, Value: "1.0"},
		{Name: xml.Name{Local: "from"}, Value: "example.org"},
	}
	info, err := stream.ParseOpenAttrs(attrs)
	if err != nil {
		t.Fatalf("ParseOpenAttrs: %v", err)
	}
	if info.ID != "s1" {
		t.Errorf("ID = %q, want s1", info.ID)
	}
	if info.Version != (stream.Version{Major: 1, Minor: 0}) {
		t.Errorf("Version = %v, want 1.0", info.Version)
	}
}

func TestParseOpenAttrsMissingVersion(t *testing.T) {
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: "s1"},
	}
	_, err := stream.ParseOpenAttrs(attrs)
	if !reflect.DeepEqual(err, stream.UnsupportedVersion) {
		t.Fatalf("expected UnsupportedVersion, got %v", err)
	}
}
