//go:build !nohttp2

package tlslistener

// HTTP2Supported reports whether "h2" is advertised. Build with the
// nohttp2 tag to turn it off.
const HTTP2Supported = true
