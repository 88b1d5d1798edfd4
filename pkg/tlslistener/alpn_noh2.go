//go:build nohttp2

package tlslistener

// HTTP2Supported reports whether "h2" is advertised.
const HTTP2Supported = false
