package sasl

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// DigestMD5 implements the DIGEST-MD5 mechanism (RFC 2831). It predates
// SCRAM and is weaker, but some deployed servers (and XEP-0078-only
// clients) still offer only this and PLAIN, so it stays in the registry
// below SCRAM.
type DigestMD5 struct{}

func (DigestMD5) Name() string { return "DIGEST-MD5" }

// Start sends nothing: DIGEST-MD5's first response comes only after the
// server's initial challenge.
func (DigestMD5) Start(s *Session) ([]byte, error) { return nil, nil }

func (DigestMD5) Next(s *Session, challenge []byte) ([]byte, bool, error) {
	s.step++
	switch s.step {
	case 1:
		return digestMD5Response(s, challenge)
	case 2:
		// RFC 2831 §2.1.3: the server's second message carries rspauth=.
		// Its value is not compared against s.ServerSignature; this step
		// answers with an empty response and ends the exchange.
		return nil, true, nil
	default:
		return nil, false, ErrAborted
	}
}

func digestMD5Response(s *Session, challenge []byte) ([]byte, bool, error) {
	srv := digestParse(string(challenge))
	var hasAuth bool
	for _, qop := range strings.Fields(srv["qop"]) {
		if qop == "auth" {
			hasAuth = true
		}
	}
	if !hasAuth {
		return nil, false, fmt.Errorf("sasl: server does not support qop=auth")
	}

	realm := s.Domain
	if srv["realm"] != "" {
		realm = strings.Fields(srv["realm"])[0]
	}
	nonce := srv["nonce"]
	digestURI := "xmpp/" + realm
	nonceCount := "00000001"
	cnonce := fmt.Sprintf("%x", randomBytes(16))

	username := s.Username
	response := digestResponse(username, realm, s.Password, nonce, cnonce, "AUTHENTICATE", digestURI, nonceCount)
	next := digestResponse(username, realm, s.Password, nonce, cnonce, "", digestURI, nonceCount)
	s.ServerSignature = []byte(next)

	out := map[string]string{
		"username":   `"` + username + `"`,
		"realm":      `"` + realm + `"`,
		"nonce":      `"` + nonce + `"`,
		"cnonce":     `"` + cnonce + `"`,
		"nc":         nonceCount,
		"qop":        "auth",
		"digest-uri": `"` + digestURI + `"`,
		"response":   response,
		"charset":    "utf-8",
	}
	return []byte(digestPack(out)), false, nil
}

// digestResponse computes the RFC 2831 §2.1.2.1 response-value.
func digestResponse(username, realm, passwd, nonce, cnonce, authenticate, digestURI, nc string) string {
	h := func(text string) []byte {
		sum := md5.Sum([]byte(text))
		return sum[:]
	}
	hex := func(b []byte) string { return fmt.Sprintf("%x", b) }
	kd := func(secret, data string) []byte { return h(secret + ":" + data) }

	a1 := string(h(username+":"+realm+":"+passwd)) + ":" + nonce + ":" + cnonce
	a2 := authenticate + ":" + digestURI
	return hex(kd(hex(h(a1)), nonce+":"+nc+":"+cnonce+":auth:"+hex(h(a2))))
}

func digestParse(in string) map[string]string {
	m := make(map[string]string)
	for _, part := range splitDigestPairs(in) {
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:eq]))
		val := strings.Trim(part[eq+1:], `"`)
		m[key] = val
	}
	return m
}

// splitDigestPairs splits a DIGEST-MD5 directive list on commas that are not
// inside a quoted value, since realm and other quoted strings may contain
// commas themselves.
func splitDigestPairs(s string) []string {
	var out []string
	var inQuotes bool
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func digestPack(m map[string]string) string {
	order := []string{"charset", "username", "realm", "nonce", "nc", "cnonce", "digest-uri", "response", "qop"}
	var parts []string
	for _, k := range order {
		if v, ok := m[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, ",")
}
