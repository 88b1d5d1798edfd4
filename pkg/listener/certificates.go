package listener

import (
	"crypto/x509"
	"sync/atomic"
)

// CertificateData is one raw, DER-encoded X.509 certificate.
type CertificateData []byte

// Parse parses the certificate.
func (d CertificateData) Parse() (*x509.Certificate, error) {
	return x509.ParseCertificate(d)
}

// Certificates holds a peer certificate chain that is filled at most once.
//
// It is shared between the goroutine completing a TLS handshake and the
// request layer reading credentials. Before the fill, readers see no data;
// afterwards they see the final chain. Readers never block.
type Certificates struct {
	chain atomic.Pointer[[]CertificateData]
}

// NewCertificates returns an empty Certificates.
func NewCertificates() *Certificates {
	return &Certificates{}
}

// Set stores the chain. Only the first call has an effect; it reports
// whether this call was the one that filled the cell.
func (c *Certificates) Set(chain []CertificateData) bool {
	cp := make([]CertificateData, len(chain))
	for i, cert := range chain {
		cp[i] = append(CertificateData(nil), cert...)
	}
	return c.chain.CompareAndSwap(nil, &cp)
}

// ChainData returns the certificate chain, if it has been set.
func (c *Certificates) ChainData() ([]CertificateData, bool) {
	p := c.chain.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Len returns the number of certificates, zero if not yet set.
func (c *Certificates) Len() int {
	chain, _ := c.ChainData()
	return len(chain)
}
