package xmpp

import "crypto/rand"

// randomSeed returns 16 cryptographically random bytes, used once per
// Session to salt its unique_base_id.
func randomSeed() []byte {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("xmpp: system CSPRNG unavailable: " + err.Error())
	}
	return b
}
