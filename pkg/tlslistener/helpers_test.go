package tlslistener_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/log"
	"github.com/portico-http/portico/pkg/tlslistener"
)

// testCA is a certificate authority for tests.
type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func serial(t *testing.T) *big.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	return n
}

func newRootCA(t *testing.T, name string) *testCA {
	t.Helper()
	key := newKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &testCA{cert: cert, key: key}
}

func (ca *testCA) sign(t *testing.T, tmpl *x509.Certificate, key *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl.SerialNumber = serial(t)
	tmpl.NotBefore = time.Now().Add(-time.Hour)
	tmpl.NotAfter = time.Now().Add(24 * time.Hour)
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func (ca *testCA) intermediate(t *testing.T, name string) *testCA {
	t.Helper()
	key := newKey(t)
	cert := ca.sign(t, &x509.Certificate{
		Subject:               pkix.Name{CommonName: name},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}, key)
	return &testCA{cert: cert, key: key}
}

func (ca *testCA) leaf(t *testing.T, name string, usage x509.ExtKeyUsage) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key := newKey(t)
	cert := ca.sign(t, &x509.Certificate{
		Subject:     pkix.Name{CommonName: name},
		DNSNames:    []string{name},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
	}, key)
	return cert, key
}

func (ca *testCA) pool() *x509.CertPool {
	p := x509.NewCertPool()
	p.AddCert(ca.cert)
	return p
}

func pemCerts(certs ...*x509.Certificate) []byte {
	var buf bytes.Buffer
	for _, c := range certs {
		_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})
	}
	return buf.Bytes()
}

func pemKey(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// pki is a server certificate plus a client chain under separate roots.
type pki struct {
	serverRoot *testCA
	serverPEM  []byte
	keyPEM     []byte

	clientRoot  *testCA
	clientInter *testCA
	clientLeaf  *x509.Certificate
	clientKey   *ecdsa.PrivateKey
}

func newPKI(t *testing.T) *pki {
	t.Helper()
	p := &pki{serverRoot: newRootCA(t, "server root")}
	cert, key := p.serverRoot.leaf(t, "localhost", x509.ExtKeyUsageServerAuth)
	p.serverPEM = pemCerts(cert)
	p.keyPEM = pemKey(t, key)

	p.clientRoot = newRootCA(t, "client root")
	p.clientInter = p.clientRoot.intermediate(t, "client intermediate")
	p.clientLeaf, p.clientKey = p.clientInter.leaf(t, "client", x509.ExtKeyUsageClientAuth)
	return p
}

func (p *pki) config() tlslistener.Config {
	return tlslistener.Config{
		CertChain:  bytes.NewReader(p.serverPEM),
		PrivateKey: bytes.NewReader(p.keyPEM),
	}
}

func (p *pki) mtlsConfig(mandatory bool) tlslistener.Config {
	cfg := p.config()
	cfg.CACerts = bytes.NewReader(pemCerts(p.clientRoot.cert))
	cfg.MandatoryMTLS = mandatory
	return cfg
}

func (p *pki) clientConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    p.serverRoot.pool(),
		ServerName: "localhost",
	}
}

func (p *pki) clientCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{p.clientLeaf.Raw, p.clientInter.cert.Raw},
		PrivateKey:  p.clientKey,
	}
}

func bindTLS(t *testing.T, cfg tlslistener.Config, opts ...tlslistener.Option) (*tlslistener.Listener, string) {
	t.Helper()
	inner, err := listener.BindTCP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	tl, err := tlslistener.Bind(inner, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { tl.Close() })
	addr, _ := tl.LocalAddr()
	return tl, addr.String()
}

type clientResult struct {
	state tls.ConnectionState
	err   error
}

// dialEcho connects with cfg, sends "hello" and waits for "world".
func dialEcho(addr string, cfg *tls.Config) <-chan clientResult {
	out := make(chan clientResult, 1)
	go func() {
		c, err := tls.Dial("tcp", addr, cfg)
		if err != nil {
			out <- clientResult{err: err}
			return
		}
		defer c.Close()
		if _, err := c.Write([]byte("hello")); err != nil {
			out <- clientResult{err: err}
			return
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(c, buf); err != nil {
			out <- clientResult{err: err}
			return
		}
		out <- clientResult{state: c.ConnectionState()}
	}()
	return out
}

// serveEcho accepts one connection, reads "hello" and answers "world".
func serveEcho(t *testing.T, tl *tlslistener.Listener) *tlslistener.Conn {
	t.Helper()
	conn, err := tl.Accept(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
	_, err = conn.Write([]byte("world"))
	require.NoError(t, err)
	return conn.(*tlslistener.Conn)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}
