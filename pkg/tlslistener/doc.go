// Package tlslistener wraps any listener.Listener with TLS.
//
// Accept returns as soon as the raw transport is accepted. The handshake
// runs lazily inside the first Read or Write on the returned Conn, so a
// slow client occupies a worker only once it actually sends bytes:
//
//	Accept ──► Conn{handshaking} ──first Read/Write──► Conn{streaming}
//	                     │
//	                     └── handshake error ──► Conn{failed}
//
// The transition out of the handshaking state happens exactly once. A
// failed connection returns the handshake error from every later Read or
// Write; Flush, Shutdown and EnableNoDelay become no-ops once the raw
// transport has been released.
//
// # Peer Certificates
//
// Conn.PeerCertificates always returns a store. It is empty until the
// handshake completes and then holds the chain the client presented,
// peer certificate first. Request handlers only read it after payload
// bytes arrived, which implies a completed handshake.
//
// # Configuration
//
// Bind validates the PEM inputs once and fails with a *ConfigError naming
// the artifact at fault. Client certificates are verified when a CA bundle
// is configured and required when MandatoryMTLS is also set. ALPN
// advertises "h2" ahead of "http/1.1" unless the package is built with the
// nohttp2 tag.
//
// Session resumption uses tickets encrypted with HKDF-derived keys. Issued
// tickets are tracked in a bounded cache of SessionCacheSize entries; a
// ticket that fell out of the cache forces a full handshake.
package tlslistener
