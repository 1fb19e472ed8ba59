package sasl

// External implements the EXTERNAL mechanism (RFC 4422 appendix A): the
// client asserts that the identity already established out of band (a TLS
// client certificate) should be used. The initial response is always the
// bare JID to authenticate as (Authzid if set, else the origin's own
// BareJID), matching the ground truth this mechanism is modeled on rather
// than RFC 4422's "=" shortcut for "same identity as the external one".
type External struct{}

func (External) Name() string { return "EXTERNAL" }

func (External) Start(s *Session) ([]byte, error) {
	if s.Authzid != "" {
		return []byte(s.Authzid), nil
	}
	return []byte(s.BareJID), nil
}

func (External) Next(s *Session, challenge []byte) ([]byte, bool, error) {
	return nil, true, nil
}
