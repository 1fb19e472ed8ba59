// Package attr provides small helpers for working with XML attribute lists
// and generating identifiers, shared by the stanza, stream, and sasl
// packages.
package attr

import (
	"crypto/rand"
	"encoding/xml"
	"fmt"
)

// Get returns the value of the first attribute with the given local name, or
// the empty string if none exists.
func Get(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// RandomHex returns n random bytes encoded as a hex string (2n characters).
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("attr: failed to read random bytes: " + err.Error())
	}
	return fmt.Sprintf("%x", b)
}
