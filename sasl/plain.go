package sasl

// Plain implements the PLAIN mechanism (RFC 4616): authzid, authcid, and
// password concatenated with NUL separators, sent in the initial response.
// It offers no confidentiality of its own and should only be selected over
// a channel already protected by TLS.
type Plain struct{}

func (Plain) Name() string { return "PLAIN" }

func (Plain) Start(s *Session) ([]byte, error) {
	msg := s.Authzid + "\x00" + s.Username + "\x00" + s.Password
	return []byte(msg), nil
}

func (Plain) Next(s *Session, challenge []byte) ([]byte, bool, error) {
	// RFC 4616 defines no further round trip; any challenge here is a
	// malformed exchange on the server's part.
	return nil, true, nil
}
