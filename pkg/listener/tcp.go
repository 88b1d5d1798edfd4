package listener

import (
	"context"
	"fmt"
	"net"

	"github.com/portico-http/portico/pkg/bindable"
)

// TCPListener adapts a *net.TCPListener.
type TCPListener struct {
	ln *net.TCPListener
}

// BindTCP binds a TCP listener to address ("host:port").
func BindTCP(ctx context.Context, address string) (*TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return NewTCPListener(ln.(*net.TCPListener)), nil
}

// NewTCPListener wraps an existing listener.
func NewTCPListener(ln *net.TCPListener) *TCPListener {
	return &TCPListener{ln: ln}
}

// LocalAddr returns the bound address.
func (l *TCPListener) LocalAddr() (bindable.Addr, bool) {
	return bindable.FromNetAddr(l.ln.Addr())
}

// Accept waits for the next TCP connection.
func (l *TCPListener) Accept(ctx context.Context) (Connection, error) {
	c, err := acceptContext(ctx, l.ln, l.ln.AcceptTCP)
	if err != nil {
		return nil, err
	}
	return &TCPConn{TCPConn: c}, nil
}

// Close closes the listener. TCP listeners leave nothing on the filesystem.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// TCPConn is a TCP connection. It is also a net.Conn.
type TCPConn struct {
	*net.TCPConn
}

// Flush is a no-op; TCP writes are not buffered in user space.
func (c *TCPConn) Flush() error { return nil }

// Shutdown half-closes the connection.
func (c *TCPConn) Shutdown() error { return c.CloseWrite() }

// PeerAddress returns the remote address.
func (c *TCPConn) PeerAddress() (bindable.Addr, bool) {
	return bindable.FromNetAddr(c.RemoteAddr())
}

// EnableNoDelay sets TCP_NODELAY.
func (c *TCPConn) EnableNoDelay() error { return c.SetNoDelay(true) }

// PeerCertificates returns nil; plain TCP never presents certificates.
func (c *TCPConn) PeerCertificates() *Certificates { return nil }

var (
	_ Listener   = (*TCPListener)(nil)
	_ Connection = (*TCPConn)(nil)
	_ net.Conn   = (*TCPConn)(nil)
)
