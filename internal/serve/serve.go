// Package serve runs net/http on top of an accept loop.
//
// Connections that negotiated "h2" are handed to an HTTP/2 server
// directly; everything else is queued into an http.Server. Handlers reach
// the transport connection, and through it the peer certificates, with
// listener.ConnectionFromContext.
package serve

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/tlslistener"
)

// DefaultHandshakeTimeout bounds a TLS handshake driven by the server.
const DefaultHandshakeTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) { s.handshakeTimeout = d }
}

// Server serves HTTP/1.1 and HTTP/2 over listener connections.
type Server struct {
	handler          http.Handler
	logger           *slog.Logger
	handshakeTimeout time.Duration

	http1 *http.Server
	http2 *http2.Server

	wg sync.WaitGroup
}

// New creates a Server for handler.
func New(handler http.Handler, opts ...Option) (*Server, error) {
	s := &Server{
		handler:          handler,
		logger:           slog.Default(),
		handshakeTimeout: DefaultHandshakeTimeout,
		http2:            &http2.Server{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.http1 = &http.Server{
		Handler:           withTLSState(handler),
		ReadHeaderTimeout: 30 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if conn := listener.AsConnection(c); conn != nil {
				return listener.WithConnection(ctx, conn)
			}
			return ctx
		},
	}
	if err := http2.ConfigureServer(s.http1, s.http2); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return s, nil
}

// Serve accepts connections from in until ctx ends or the accept loop
// fails. It returns nil when stopped through ctx.
func (s *Server) Serve(ctx context.Context, in *listener.Incoming) error {
	queue := newConnQueue(in)
	defer queue.Close()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.http1.Serve(queue)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	for {
		conn, err := in.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn, queue)
		}()
	}
}

// Shutdown gracefully stops HTTP processing and waits for connection
// goroutines to finish or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http1.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) handle(ctx context.Context, conn listener.Connection, queue *connQueue) {
	if tc, ok := conn.(*tlslistener.Conn); ok {
		hsCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
		err := tc.Handshake(hsCtx)
		cancel()
		if err != nil {
			// Already logged by the TLS layer.
			_ = tc.Close()
			return
		}

		if tc.NegotiatedProtocol() == http2.NextProtoTLS {
			s.http2.ServeConn(stateConn{Conn: listener.NetConn(conn), tc: tc}, &http2.ServeConnOpts{
				Context:    listener.WithConnection(ctx, conn),
				Handler:    s.handler,
				BaseConfig: s.http1,
			})
			_ = conn.Close()
			return
		}
	}

	queue.push(listener.NetConn(conn))
}

// tlsStater is implemented by connections that carry a TLS session.
type tlsStater interface {
	ConnectionState() tls.ConnectionState
}

// withTLSState fills Request.TLS for HTTP/1.1 requests. http.Server only
// does that for *tls.Conn, and queued connections are never one.
func withTLSState(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			if conn, ok := listener.ConnectionFromContext(r.Context()); ok {
				if st, ok := conn.(tlsStater); ok {
					state := st.ConnectionState()
					r.TLS = &state
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// stateConn exposes the TLS state to the HTTP/2 server, which checks the
// negotiated version and cipher and fills Request.TLS from it.
type stateConn struct {
	net.Conn
	tc *tlslistener.Conn
}

func (c stateConn) ConnectionState() tls.ConnectionState {
	return c.tc.ConnectionState()
}

// connQueue is the net.Listener http.Server consumes. Connections are
// pushed by Serve after protocol dispatch.
type connQueue struct {
	in    *listener.Incoming
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newConnQueue(in *listener.Incoming) *connQueue {
	return &connQueue{
		in:    in,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

func (q *connQueue) push(c net.Conn) {
	select {
	case q.conns <- c:
	case <-q.done:
		_ = c.Close()
	}
}

func (q *connQueue) Accept() (net.Conn, error) {
	select {
	case c := <-q.conns:
		return c, nil
	case <-q.done:
		return nil, net.ErrClosed
	}
}

func (q *connQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

func (q *connQueue) Addr() net.Addr {
	if addr, ok := q.in.Addr(); ok {
		return addr.NetAddr()
	}
	return &net.TCPAddr{}
}
