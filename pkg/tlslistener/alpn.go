package tlslistener

// ALPN protocol identifiers.
const (
	ProtocolHTTP2 = "h2"
	ProtocolHTTP1 = "http/1.1"
)

// alpnProtocols returns the protocols to advertise, most preferred first.
func alpnProtocols(http2 bool) []string {
	if http2 && HTTP2Supported {
		return []string{ProtocolHTTP2, ProtocolHTTP1}
	}
	return []string{ProtocolHTTP1}
}
