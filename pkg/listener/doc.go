// Package listener provides the transport abstraction portico serves HTTP on.
//
// A Listener yields Connections. TCP sockets, local domain sockets and TLS
// (see package tlslistener) all implement the same two interfaces, so the
// layers above never need to know which transport is underneath.
//
// # Accept Loop
//
// Incoming wraps any Listener and turns single accept calls into a
// resilient stream of connections:
//
//	┌────────────────────────────────┐
//	│   net/http (via NetListener)   │
//	├────────────────────────────────┤
//	│   Incoming (retry + backoff)   │
//	├────────────────────────────────┤
//	│   TLS listener (optional)      │
//	├────────────────────────────────┤
//	│   TCP / Unix / polled Unix     │
//	└────────────────────────────────┘
//
// Errors that only concern the connection being accepted (refused, aborted,
// reset) are retried at once. Other errors, typically EMFILE/ENFILE, are
// retried after a fixed delay when one is configured and are fatal
// otherwise.
//
// # Certificates
//
// Certificates is a fill-once cell for a peer certificate chain. Transports
// that never present certificates return nil from PeerCertificates.
package listener
