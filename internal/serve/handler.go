package serve

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/portico-http/portico/pkg/listener"
)

// InfoHandler reports what the transport knows about the request's
// connection: protocol, peer address, TLS version and the client
// certificate subject.
func InfoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "proto: %s\n", r.Proto)
		fmt.Fprintf(w, "remote: %s\n", r.RemoteAddr)
		if r.TLS != nil {
			fmt.Fprintf(w, "tls: %s\n", tls.VersionName(r.TLS.Version))
		}

		conn, ok := listener.ConnectionFromContext(r.Context())
		if !ok {
			return
		}
		certs := conn.PeerCertificates()
		if certs == nil {
			return
		}
		chain, ok := certs.ChainData()
		if !ok || len(chain) == 0 {
			fmt.Fprintln(w, "client: anonymous")
			return
		}
		leaf, err := chain[0].Parse()
		if err != nil {
			fmt.Fprintf(w, "client: unparsable certificate: %v\n", err)
			return
		}
		fmt.Fprintf(w, "client: %s\n", leaf.Subject.CommonName)
		fmt.Fprintf(w, "chain: %d\n", len(chain))
	})
}
