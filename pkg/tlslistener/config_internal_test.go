package tlslistener

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickSuite(t *testing.T) {
	a := tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
	b := tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256
	c := tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384

	tests := []struct {
		name         string
		server       []uint16
		client       []uint16
		preferServer bool
		want         uint16
		ok           bool
	}{
		{"server order", []uint16{b, a}, []uint16{a, b}, true, b, true},
		{"client order", []uint16{b, a}, []uint16{a, b}, false, a, true},
		{"skips unsupported", []uint16{c, a}, []uint16{b, a}, true, a, true},
		{"client skips disallowed", []uint16{a}, []uint16{b, c, a}, false, a, true},
		{"no overlap", []uint16{a}, []uint16{b}, true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickSuite(tt.server, tt.client, tt.preferServer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsableSuitesFiltersByKey(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	ids := []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	}
	got, tls13, err := usableSuites(ids, ecKey)
	require.NoError(t, err)
	assert.Equal(t, []uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, got)
	assert.True(t, tls13)

	got, tls13, err = usableSuites([]uint16{tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, ecKey)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.False(t, tls13)

	got, tls13, err = usableSuites([]uint16{tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, tls.TLS_AES_256_GCM_SHA384}, ecKey)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, tls13)

	_, _, err = usableSuites([]uint16{tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}, ecKey)
	assert.Error(t, err)

	_, _, err = usableSuites([]uint16{0x0a0a}, ecKey)
	assert.ErrorIs(t, err, ErrUnknownCipher)
}

func TestCipherSuiteByName(t *testing.T) {
	id, err := CipherSuiteByName("tls_ecdhe_ecdsa_with_aes_128_gcm_sha256")
	require.NoError(t, err)
	assert.Equal(t, tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, id)

	_, err = CipherSuiteByName("TLS_NOPE")
	assert.ErrorIs(t, err, ErrUnknownCipher)
}

func TestALPNProtocols(t *testing.T) {
	assert.Equal(t, []string{ProtocolHTTP1}, alpnProtocols(false))
	if HTTP2Supported {
		assert.Equal(t, []string{ProtocolHTTP2, ProtocolHTTP1}, alpnProtocols(true))
	} else {
		assert.Equal(t, []string{ProtocolHTTP1}, alpnProtocols(true))
	}
}

func TestReadPrivateKeyEncodings(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sec1, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)

	tests := []struct {
		name  string
		block *pem.Block
	}{
		{"sec1", &pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}},
		{"pkcs8", &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}},
		{"pkcs1", &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			// Leading parameters block as written by openssl ecparam.
			require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "EC PARAMETERS", Bytes: []byte{0x06}}))
			require.NoError(t, pem.Encode(&buf, tt.block))

			key, err := readPrivateKey(&buf)
			require.NoError(t, err)
			assert.NotNil(t, key.Public())
		})
	}
}

func TestSessionCacheInstall(t *testing.T) {
	cfg := &tls.Config{}
	cache := newSessionCache(2)
	require.NoError(t, cache.install(cfg))

	assert.NotNil(t, cfg.WrapSession)
	assert.NotNil(t, cfg.UnwrapSession)
	assert.Zero(t, cache.Len())

	// A ticket this cache never issued is ignored rather than rejected.
	ss, err := cfg.UnwrapSession([]byte("unknown ticket"), tls.ConnectionState{})
	assert.NoError(t, err)
	assert.Nil(t, ss)
}
