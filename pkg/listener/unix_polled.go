//go:build unix

package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/portico-http/portico/pkg/bindable"
)

// DefaultPollInterval is how long the polled adapter waits before
// re-trying an operation that would block.
const DefaultPollInterval = 5 * time.Millisecond

// PolledUnixListener is a local domain socket listener driven by polling a
// non-blocking socket instead of the runtime network poller.
//
// There is no readiness notification: Accept, Read and Write retry their
// single-shot counterparts every poll interval. This bounds throughput and
// adds up to one interval of latency per operation. It exists for
// environments where the socket cannot be registered with the poller.
type PolledUnixListener struct {
	mu       sync.Mutex
	fd       int
	path     string
	interval time.Duration
	closed   bool
}

// BindUnixPolled binds a polled local domain socket listener to path.
func BindUnixPolled(path string) (*PolledUnixListener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := setupPolledListener(fd, path); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to listen on unix:%s: %w", path, err)
	}

	return &PolledUnixListener{fd: fd, path: path, interval: DefaultPollInterval}, nil
}

func setupPolledListener(fd int, path string) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return os.NewSyscallError("setnonblock", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		return os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return os.NewSyscallError("listen", err)
	}
	return nil
}

// SetPollInterval changes the retry interval. Call before the first Accept.
func (l *PolledUnixListener) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.interval = d
	}
}

// LocalAddr returns the socket path.
func (l *PolledUnixListener) LocalAddr() (bindable.Addr, bool) {
	return bindable.Unix(l.path), true
}

// PollAccept makes one non-blocking accept attempt. It returns
// ErrWouldBlock when no client is waiting.
func (l *PolledUnixListener) PollAccept() (*PolledUnixConn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrListenerClosed
	}

	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		if isRetryable(err) {
			return nil, ErrWouldBlock
		}
		return nil, os.NewSyscallError("accept", err)
	}
	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	c := &PolledUnixConn{fd: nfd, interval: l.interval}
	if su, ok := sa.(*unix.SockaddrUnix); ok && su.Name != "" {
		c.peer = bindable.Unix(su.Name)
		c.hasPeer = true
	}
	return c, nil
}

// Accept re-invokes PollAccept every poll interval until a client arrives,
// the listener fails, or ctx ends.
func (l *PolledUnixListener) Accept(ctx context.Context) (Connection, error) {
	var timer *time.Timer
	for {
		c, err := l.PollAccept()
		if !errors.Is(err, ErrWouldBlock) {
			if err != nil {
				return nil, err
			}
			return c, nil
		}

		if timer == nil {
			timer = time.NewTimer(l.interval)
			defer timer.Stop()
		} else {
			timer.Reset(l.interval)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the socket and removes its path, ignoring removal errors.
func (l *PolledUnixListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	err := unix.Close(l.fd)
	_ = os.Remove(l.path)
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// PolledUnixConn is a connection accepted by PolledUnixListener.
//
// Every syscall on fd runs under a read lock of mu and Close takes the
// write lock, so the descriptor number cannot be closed and reused by a
// later accept while another goroutine is still using it.
type PolledUnixConn struct {
	mu       sync.RWMutex
	fd       int
	closed   bool
	interval time.Duration
	peer     bindable.Addr
	hasPeer  bool
}

// TryRead makes one non-blocking read. It returns ErrWouldBlock when no
// data is available and io.EOF when the peer has shut down.
func (c *PolledUnixConn) TryRead(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := readInto(c.fd, p)
	switch {
	case err != nil && isRetryable(err):
		return 0, ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("read", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// readInto reads into p. Only p[:n] holds data from this call; the caller
// must not treat the rest of p as filled.
func readInto(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// TryWrite makes one non-blocking write and returns ErrWouldBlock if the
// socket buffer is full.
func (c *PolledUnixConn) TryWrite(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	n, err := unix.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	switch {
	case err != nil && isRetryable(err):
		return n, ErrWouldBlock
	case err != nil:
		return n, os.NewSyscallError("write", err)
	}
	return n, nil
}

// Read polls TryRead until data, EOF or an error arrives.
func (c *PolledUnixConn) Read(p []byte) (int, error) {
	for {
		n, err := c.TryRead(p)
		if !errors.Is(err, ErrWouldBlock) {
			return n, err
		}
		time.Sleep(c.interval)
	}
}

// Write polls TryWrite until all of p is written or an error occurs.
func (c *PolledUnixConn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := c.TryWrite(p[written:])
		written += n
		if errors.Is(err, ErrWouldBlock) {
			time.Sleep(c.interval)
			continue
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Flush is a no-op; writes go straight to the socket.
func (c *PolledUnixConn) Flush() error { return nil }

// Shutdown shuts down both directions of the socket.
func (c *PolledUnixConn) Shutdown() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return net.ErrClosed
	}
	if err := unix.Shutdown(c.fd, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN {
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// Close closes the socket.
func (c *PolledUnixConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if err := unix.Close(c.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// PeerAddress returns the peer path, if the client bound one.
func (c *PolledUnixConn) PeerAddress() (bindable.Addr, bool) {
	return c.peer, c.hasPeer
}

// EnableNoDelay succeeds without doing anything.
func (c *PolledUnixConn) EnableNoDelay() error { return nil }

// PeerCertificates returns nil.
func (c *PolledUnixConn) PeerCertificates() *Certificates { return nil }

func isRetryable(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

var (
	_ Listener   = (*PolledUnixListener)(nil)
	_ Connection = (*PolledUnixConn)(nil)
)
