package tlslistener

import (
	"errors"
	"fmt"
)

// Configuration artifacts reported by ConfigError.
const (
	ArtifactCertChain  = "cert chain"
	ArtifactPrivateKey = "private key"
	ArtifactCACerts    = "CA certs"
	ArtifactTLSConfig  = "TLS config"
	ArtifactTicketer   = "ticketer"
)

// PEM and key errors wrapped by ConfigError.
var (
	ErrNoCertificates = errors.New("no certificates found")
	ErrNoPrivateKey   = errors.New("no private key found")
	ErrUnsupportedKey = errors.New("unsupported private key type")
	ErrKeyMismatch    = errors.New("private key does not match certificate")
	ErrUnknownCipher  = errors.New("unknown cipher suite")
)

// ConfigError is returned by Bind when one of the TLS inputs is unusable.
// It is a setup-time failure and is never retried.
type ConfigError struct {
	Artifact string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad TLS %s: %v", e.Artifact, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(artifact string, err error) error {
	return &ConfigError{Artifact: artifact, Err: err}
}
