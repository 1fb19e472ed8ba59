package sasl

// Anonymous implements the ANONYMOUS mechanism (RFC 4505): a single opaque
// trace token, typically an email address or a free-form note for server
// logs, and no password.
type Anonymous struct{}

func (Anonymous) Name() string { return "ANONYMOUS" }

func (Anonymous) Start(s *Session) ([]byte, error) {
	return []byte(s.Username), nil
}

func (Anonymous) Next(s *Session, challenge []byte) ([]byte, bool, error) {
	return nil, true, nil
}
