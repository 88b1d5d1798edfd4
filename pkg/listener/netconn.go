package listener

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/portico-http/portico/pkg/bindable"
)

// NetConn returns c as a net.Conn. Connections that already are one are
// returned unchanged. For others, deadlines are forwarded when the
// connection supports them and report errors.ErrUnsupported otherwise.
func NetConn(c Connection) net.Conn {
	if nc, ok := c.(net.Conn); ok {
		return nc
	}
	return &netConn{Connection: c}
}

// AsConnection returns the Connection behind a net.Conn produced by
// NetConn, or nil.
func AsConnection(nc net.Conn) Connection {
	switch c := nc.(type) {
	case *netConn:
		return c.Connection
	case Connection:
		return c
	}
	return nil
}

type netConn struct {
	Connection
}

type deadlineConn interface {
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type localAddresser interface {
	LocalAddr() (bindable.Addr, bool)
}

func (c *netConn) LocalAddr() net.Addr {
	if l, ok := c.Connection.(localAddresser); ok {
		if addr, ok := l.LocalAddr(); ok {
			return addr.NetAddr()
		}
	}
	return unknownAddr{}
}

func (c *netConn) RemoteAddr() net.Addr {
	if addr, ok := c.PeerAddress(); ok {
		return addr.NetAddr()
	}
	return unknownAddr{}
}

func (c *netConn) SetDeadline(t time.Time) error {
	if d, ok := c.Connection.(deadlineConn); ok {
		return d.SetDeadline(t)
	}
	return errors.ErrUnsupported
}

func (c *netConn) SetReadDeadline(t time.Time) error {
	if d, ok := c.Connection.(deadlineConn); ok {
		return d.SetReadDeadline(t)
	}
	return errors.ErrUnsupported
}

func (c *netConn) SetWriteDeadline(t time.Time) error {
	if d, ok := c.Connection.(deadlineConn); ok {
		return d.SetWriteDeadline(t)
	}
	return errors.ErrUnsupported
}

// CloseWrite lets net/http half-close the connection.
func (c *netConn) CloseWrite() error {
	return c.Shutdown()
}

type unknownAddr struct{}

func (unknownAddr) Network() string { return "unknown" }
func (unknownAddr) String() string  { return "unknown" }

type connectionKey struct{}

// WithConnection returns a context carrying c. Use it from
// http.Server.ConnContext so handlers can reach peer certificates.
func WithConnection(ctx context.Context, c Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, c)
}

// ConnectionFromContext returns the Connection stored by WithConnection.
func ConnectionFromContext(ctx context.Context) (Connection, bool) {
	c, ok := ctx.Value(connectionKey{}).(Connection)
	return c, ok
}

// NetListener exposes an Incoming as a net.Listener for http.Server.Serve.
// Close cancels a blocked Accept and closes the Incoming.
func NetListener(in *Incoming) net.Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &netListener{in: in, ctx: ctx, cancel: cancel}
}

type netListener struct {
	in     *Incoming
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (l *netListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.in.Accept(l.ctx)
	if err != nil {
		if l.ctx.Err() != nil {
			return nil, net.ErrClosed
		}
		return nil, err
	}
	return NetConn(c), nil
}

func (l *netListener) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.closeErr = l.in.Close()
	})
	return l.closeErr
}

func (l *netListener) Addr() net.Addr {
	if addr, ok := l.in.Addr(); ok {
		return addr.NetAddr()
	}
	return unknownAddr{}
}
