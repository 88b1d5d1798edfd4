package listener

import (
	"context"
	"errors"
	"io"

	"github.com/portico-http/portico/pkg/bindable"
)

// Listener errors.
var (
	// ErrWouldBlock is returned by single-shot operations of the polled
	// adapter when nothing is ready yet. Callers try again later.
	ErrWouldBlock = errors.New("operation would block")

	// ErrListenerClosed is returned by Accept after Close.
	ErrListenerClosed = errors.New("listener closed")
)

// Listener yields incoming connections.
//
// Accept must not be called concurrently on the same Listener. A non-nil
// error other than the context's is fatal: callers must not call Accept
// again unless a wrapping layer (Incoming) documents otherwise.
type Listener interface {
	// LocalAddr returns the address the listener is bound to, if known.
	LocalAddr() (bindable.Addr, bool)

	// Accept waits for the next connection. If ctx ends first Accept
	// returns ctx.Err() and the listener remains usable.
	Accept(ctx context.Context) (Connection, error)

	// Close stops the listener and releases its resources.
	Close() error
}

// Connection is an open duplex byte stream to one peer.
// One Read and one Write may be in progress concurrently.
type Connection interface {
	io.Reader
	io.Writer

	// Flush writes out any data buffered by the transport.
	Flush() error

	// Shutdown shuts down the write side of the connection.
	Shutdown() error

	// Close closes the connection.
	Close() error

	// PeerAddress returns the remote address, if known.
	PeerAddress() (bindable.Addr, bool)

	// EnableNoDelay asks the transport not to delay reads and writes.
	// For TCP this sets TCP_NODELAY.
	EnableNoDelay() error

	// PeerCertificates returns the certificate chain presented by the
	// peer. The order is as it appears in the TLS protocol: the first
	// certificate relates to the peer, the second certifies the first,
	// and so on.
	//
	// A nil result means the transport never presents certificates.
	PeerCertificates() *Certificates
}

// Identified is implemented by connections that carry a connection ID.
type Identified interface {
	ID() string
}
