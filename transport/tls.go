package transport

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// CertInfo is the subset of a peer certificate's identity the stream
// engine's ConnectionListener.OnTLSConnect callback needs to let an
// application accept or reject a handshake.
type CertInfo struct {
	Subject  string
	Issuer   string
	DNSNames []string
	Verified bool
}

// TLSEngine is the TLS collaborator the stream engine treats as external:
// init, handshake, cleanup, and a channel-binding accessor used by
// SCRAM-SHA-1-PLUS. It has no encrypt/decrypt calls: Handshake splices the
// encrypted conn into the TCPConnection. *DefaultTLSEngine wraps crypto/tls for STARTTLS use;
// applications needing a mock (tests) or a different TLS stack implement
// this interface directly.
type TLSEngine interface {
	Init(cfg *tls.Config) error
	Handshake(conn *TCPConnection, serverSide bool) (CertInfo, error)
	ChannelBindingType() string
	ChannelBinding() []byte
	Cleanup()
}

// DefaultTLSEngine wraps crypto/tls directly; STARTTLS in this module is a
// synchronous conn-splice (tls.Client/tls.Server followed by Handshake)
// rather than an async encrypt/decrypt callback pair, since Go's TLS stack
// is itself a ReadWriter wrapping the raw connection. The stream engine's
// transform chain treats the resulting *tls.Conn exactly like the plain
// TCPConnection it replaces.
type DefaultTLSEngine struct {
	cfg  *tls.Config
	conn *tls.Conn
}

func (e *DefaultTLSEngine) Init(cfg *tls.Config) error {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	e.cfg = cfg
	return nil
}

// Handshake splices a *tls.Conn over raw and performs the handshake,
// returning the resulting certificate info.
func (e *DefaultTLSEngine) Handshake(raw *TCPConnection, serverSide bool) (CertInfo, error) {
	raw.PauseForHandshake()
	underlying := raw.Raw()
	var conn *tls.Conn
	if serverSide {
		conn = tls.Server(underlying, e.cfg)
	} else {
		conn = tls.Client(underlying, e.cfg)
	}
	if err := conn.Handshake(); err != nil {
		return CertInfo{}, err
	}
	e.conn = conn
	raw.Rebind(conn)

	state := conn.ConnectionState()
	info := CertInfo{Verified: len(state.VerifiedChains) > 0}
	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		info.Subject = cert.Subject.String()
		info.Issuer = cert.Issuer.String()
		info.DNSNames = cert.DNSNames
	}
	return info, nil
}

// ChannelBindingType reports "tls-server-end-point" once a handshake has
// completed, the channel-binding type RFC 5929 §4 specifies for
// certificate-hash based binding (the variant that survives session
// resumption, unlike tls-unique).
func (e *DefaultTLSEngine) ChannelBindingType() string {
	if e.conn == nil {
		return ""
	}
	return "tls-server-end-point"
}

// ChannelBinding computes the tls-server-end-point channel-binding data
// (RFC 5929 §4): the hash of the peer's certificate, using the certificate's
// own signature hash algorithm where that's SHA-256 or stronger, else
// SHA-256 as RFC 5929 requires as a fallback.
func (e *DefaultTLSEngine) ChannelBinding() []byte {
	if e.conn == nil {
		return nil
	}
	state := e.conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	cert := state.PeerCertificates[0]
	switch cert.SignatureAlgorithm {
	case x509.SHA384WithRSA, x509.SHA384WithRSAPSS, x509.ECDSAWithSHA384:
		sum := sha512.Sum384(cert.Raw)
		return sum[:]
	case x509.SHA512WithRSA, x509.SHA512WithRSAPSS, x509.ECDSAWithSHA512:
		sum := sha512.Sum512(cert.Raw)
		return sum[:]
	}
	sum := sha256.Sum256(cert.Raw)
	return sum[:]
}

func (e *DefaultTLSEngine) Cleanup() {
	if e.conn != nil {
		e.conn.Close()
	}
	e.conn = nil
}

// VerifyPeerChain re-runs the standard library's chain verification
// against cfg's RootCAs/ServerName so a caller can produce a
// CertInfo.Verified value outside of a live handshake (e.g. in tests).
// Nothing in this module calls it; BaseConnectionListener.OnTLSConnect
// accepts every handshake without it.
func VerifyPeerChain(cfg *tls.Config, cert *x509.Certificate) error {
	opts := x509.VerifyOptions{Roots: cfg.RootCAs, DNSName: cfg.ServerName}
	_, err := cert.Verify(opts)
	if err != nil {
		return fmt.Errorf("transport: certificate verification failed: %w", err)
	}
	return nil
}
