package tlslistener

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Config holds the TLS inputs of a listener. The readers are consumed by
// Bind.
type Config struct {
	// CertChain is the PEM server certificate chain, leaf first.
	CertChain io.Reader

	// PrivateKey is the PEM private key of the leaf certificate.
	PrivateKey io.Reader

	// CACerts is an optional PEM bundle. When set, client certificates
	// are verified against it.
	CACerts io.Reader

	// MandatoryMTLS requires a client certificate. Only meaningful with
	// CACerts.
	MandatoryMTLS bool

	// CipherSuites is the allow-list of cipher suites. Empty means the
	// TLS engine's defaults. The TLS 1.3 suites cannot be chosen one by
	// one: any TLS 1.3 ID enables TLS 1.3, and a list without one limits
	// the listener to TLS 1.2. A list of only TLS 1.3 IDs disables TLS 1.2.
	CipherSuites []uint16

	// PreferServerOrder picks the first suite of CipherSuites the client
	// supports instead of the client's first choice.
	PreferServerOrder bool
}

// CipherSuiteByName resolves an IANA cipher suite name such as
// "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256".
func CipherSuiteByName(name string) (uint16, error) {
	for _, s := range allCipherSuites() {
		if strings.EqualFold(s.Name, name) {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCipher, name)
}

func allCipherSuites() []*tls.CipherSuite {
	return append(tls.CipherSuites(), tls.InsecureCipherSuites()...)
}

// buildServerConfig validates cfg and produces the immutable server
// configuration shared by all connections of a listener.
func buildServerConfig(cfg Config, http2 bool, sessions *sessionCache) (*tls.Config, error) {
	if cfg.CertChain == nil {
		return nil, configError(ArtifactCertChain, ErrNoCertificates)
	}
	chain, leaf, err := readCertChain(cfg.CertChain)
	if err != nil {
		return nil, configError(ArtifactCertChain, err)
	}

	if cfg.PrivateKey == nil {
		return nil, configError(ArtifactPrivateKey, ErrNoPrivateKey)
	}
	key, err := readPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, configError(ArtifactPrivateKey, err)
	}
	if !keyMatches(leaf, key) {
		return nil, configError(ArtifactPrivateKey, ErrKeyMismatch)
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,

		Certificates: []tls.Certificate{{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		}},

		NextProtos: alpnProtocols(http2),
		ClientAuth: tls.NoClientCert,
	}

	if cfg.CACerts != nil {
		pool, err := readCAPool(cfg.CACerts)
		if err != nil {
			return nil, configError(ArtifactCACerts, err)
		}
		tlsConfig.ClientCAs = pool
		if cfg.MandatoryMTLS {
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	if len(cfg.CipherSuites) > 0 {
		suites, tls13, err := usableSuites(cfg.CipherSuites, key)
		if err != nil {
			return nil, configError(ArtifactTLSConfig, err)
		}
		if !tls13 {
			tlsConfig.MaxVersion = tls.VersionTLS12
		}
		if len(suites) == 0 {
			tlsConfig.MinVersion = tls.VersionTLS13
		} else {
			tlsConfig.CipherSuites = suites
			sel := &suiteSelector{base: tlsConfig, preferServer: cfg.PreferServerOrder}
			tlsConfig.GetConfigForClient = sel.configForClient
		}
	}

	if sessions != nil {
		if err := sessions.install(tlsConfig); err != nil {
			return nil, configError(ArtifactTicketer, err)
		}
	}

	return tlsConfig, nil
}

// usableSuites keeps the TLS 1.2 suites of ids that can be used with key,
// preserving order, and reports whether ids names any TLS 1.3 suite.
func usableSuites(ids []uint16, key crypto.Signer) (suites []uint16, tls13 bool, err error) {
	known := make(map[uint16]*tls.CipherSuite)
	for _, s := range allCipherSuites() {
		known[s.ID] = s
	}

	var out []uint16
	for _, id := range ids {
		s, ok := known[id]
		if !ok {
			return nil, false, fmt.Errorf("%w: 0x%04x", ErrUnknownCipher, id)
		}
		if slices.Contains(s.SupportedVersions, tls.VersionTLS13) {
			tls13 = true
		}
		if !slices.Contains(s.SupportedVersions, tls.VersionTLS12) {
			continue
		}
		if suiteMatchesKey(s, key) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 && !tls13 {
		return nil, false, fmt.Errorf("no configured TLS 1.2 cipher suite works with a %T key", key)
	}
	return out, tls13, nil
}

func suiteMatchesKey(s *tls.CipherSuite, key crypto.Signer) bool {
	ecdsaSuite := strings.Contains(s.Name, "_ECDSA_")
	switch key.(type) {
	case *ecdsa.PrivateKey, ed25519.PrivateKey:
		return ecdsaSuite
	case *rsa.PrivateKey:
		return !ecdsaSuite
	default:
		return true
	}
}

// suiteSelector applies the configured cipher ordering to TLS 1.2
// handshakes. The engine ignores the order of Config.CipherSuites, so the
// chosen suite is pinned in a per-handshake copy of the config.
type suiteSelector struct {
	base         *tls.Config
	preferServer bool
}

func (s *suiteSelector) configForClient(hello *tls.ClientHelloInfo) (*tls.Config, error) {
	if s.base.MaxVersion != tls.VersionTLS12 && slices.Contains(hello.SupportedVersions, tls.VersionTLS13) {
		return nil, nil
	}
	id, ok := pickSuite(s.base.CipherSuites, hello.CipherSuites, s.preferServer)
	if !ok {
		// Let the engine fail the handshake with the usual alert.
		return nil, nil
	}
	c := s.base.Clone()
	c.GetConfigForClient = nil
	c.CipherSuites = []uint16{id}
	return c, nil
}

// pickSuite returns the negotiated suite: the first server suite the
// client offers when preferServer is set, the client's first suite the
// server allows otherwise.
func pickSuite(server, client []uint16, preferServer bool) (uint16, bool) {
	first, second := client, server
	if preferServer {
		first, second = server, client
	}
	for _, id := range first {
		if slices.Contains(second, id) {
			return id, true
		}
	}
	return 0, false
}
