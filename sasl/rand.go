package sasl

import "crypto/rand"

// randomBytes returns n cryptographically random bytes, panicking only if
// the system CSPRNG itself is broken (crypto/rand.Read never returns a
// short read on Go's supported platforms).
func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("sasl: system CSPRNG unavailable: " + err.Error())
	}
	return b
}
