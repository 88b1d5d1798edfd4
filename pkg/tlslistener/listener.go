package tlslistener

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/portico-http/portico/pkg/bindable"
	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/log"
)

// Listener accepts raw connections from an inner listener and returns
// them wrapped in TLS before the handshake has run.
type Listener struct {
	inner    listener.Listener
	config   *tls.Config
	sessions *sessionCache

	http2  bool
	logger *slog.Logger
	events log.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// WithEventLogger sets the connection event logger.
func WithEventLogger(events log.Logger) Option {
	return func(l *Listener) { l.events = log.OrNoop(events) }
}

// WithHTTP2 controls whether "h2" is advertised. It has no effect when
// HTTP2Supported is false.
func WithHTTP2(enabled bool) Option {
	return func(l *Listener) { l.http2 = enabled }
}

// Bind wraps inner with TLS configured from cfg.
func Bind(inner listener.Listener, cfg Config, opts ...Option) (*Listener, error) {
	l := &Listener{
		inner:    inner,
		sessions: newSessionCache(SessionCacheSize),
		http2:    true,
		events:   log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}

	config, err := buildServerConfig(cfg, l.http2, l.sessions)
	if err != nil {
		return nil, err
	}
	l.config = config
	return l, nil
}

// LocalAddr returns the inner listener's address.
func (l *Listener) LocalAddr() (bindable.Addr, bool) {
	return l.inner.LocalAddr()
}

// Accept returns the next raw connection wrapped in a Conn whose
// handshake has not started.
func (l *Listener) Accept(ctx context.Context) (listener.Connection, error) {
	raw, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return newConn(raw, l), nil
}

// Close closes the inner listener.
func (l *Listener) Close() error {
	return l.inner.Close()
}

// TLSConfig returns a copy of the server configuration.
func (l *Listener) TLSConfig() *tls.Config {
	return l.config.Clone()
}

var _ listener.Listener = (*Listener)(nil)
