package listener

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/portico-http/portico/pkg/bindable"
)

// UnixListener adapts a *net.UnixListener. Closing it removes the socket
// file.
type UnixListener struct {
	ln        *net.UnixListener
	closeOnce sync.Once
	closeErr  error
}

// BindUnix binds a local domain socket listener to path. It fails if the
// path is already in use.
func BindUnix(path string) (*UnixListener, error) {
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on unix:%s: %w", path, err)
	}
	// Removal is done in Close so that it also covers listeners whose
	// path was re-created by someone else after bind.
	ln.SetUnlinkOnClose(false)
	return &UnixListener{ln: ln}, nil
}

// LocalAddr returns the socket path.
func (l *UnixListener) LocalAddr() (bindable.Addr, bool) {
	return bindable.FromNetAddr(l.ln.Addr())
}

// Accept waits for the next connection.
func (l *UnixListener) Accept(ctx context.Context) (Connection, error) {
	c, err := acceptContext(ctx, l.ln, l.ln.AcceptUnix)
	if err != nil {
		return nil, err
	}
	return &UnixConn{UnixConn: c}, nil
}

// Close closes the listener and removes the socket path. Removal is best
// effort: the process may be shutting down after an error.
func (l *UnixListener) Close() error {
	l.closeOnce.Do(func() {
		addr, hasPath := l.LocalAddr()
		l.closeErr = l.ln.Close()
		if path, ok := addr.Path(); hasPath && ok {
			_ = os.Remove(path)
		}
	})
	return l.closeErr
}

// UnixConn is a local domain socket connection. It is also a net.Conn.
type UnixConn struct {
	*net.UnixConn
}

// Flush is a no-op.
func (c *UnixConn) Flush() error { return nil }

// Shutdown half-closes the connection.
func (c *UnixConn) Shutdown() error { return c.CloseWrite() }

// PeerAddress returns the peer path; clients usually have none.
func (c *UnixConn) PeerAddress() (bindable.Addr, bool) {
	return bindable.FromNetAddr(c.RemoteAddr())
}

// EnableNoDelay succeeds without doing anything.
func (c *UnixConn) EnableNoDelay() error { return nil }

// PeerCertificates returns nil.
func (c *UnixConn) PeerCertificates() *Certificates { return nil }

var (
	_ Listener   = (*UnixListener)(nil)
	_ Connection = (*UnixConn)(nil)
	_ net.Conn   = (*UnixConn)(nil)
)
