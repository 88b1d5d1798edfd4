package tlslistener

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/portico-http/portico/pkg/bindable"
	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/log"
)

// Conn is a server-side TLS connection whose handshake runs on first use.
type Conn struct {
	id      string
	tlsConn *tls.Conn
	certs   *listener.Certificates
	local   bindable.Addr
	peer    bindable.Addr
	hasPeer bool

	logger *slog.Logger
	events log.Logger

	// hsMu serializes the handshake. hsErr is sticky.
	hsMu  sync.Mutex
	hsErr error

	// rawMu guards raw and the streaming transition. raw is nil once a
	// failed handshake has released the transport.
	rawMu     sync.Mutex
	raw       listener.Connection
	streaming atomic.Bool
	started   atomic.Bool
	failed    atomic.Bool
	closed    atomic.Bool
}

func newConn(raw listener.Connection, l *Listener) *Conn {
	c := &Conn{
		id:      uuid.New().String(),
		raw:     raw,
		tlsConn: tls.Server(listener.NetConn(raw), l.config),
		certs:   listener.NewCertificates(),
		logger:  l.logger,
		events:  l.events,
	}
	c.peer, c.hasPeer = raw.PeerAddress()
	c.local, _ = l.LocalAddr()
	return c
}

// ID returns the connection ID assigned at accept.
func (c *Conn) ID() string { return c.id }

// Handshake runs the handshake now if it has not run yet. Read and Write
// call it implicitly.
func (c *Conn) Handshake(ctx context.Context) error {
	if c.streaming.Load() {
		return nil
	}

	c.hsMu.Lock()
	defer c.hsMu.Unlock()

	if c.streaming.Load() {
		return nil
	}
	if c.hsErr != nil {
		return c.hsErr
	}

	c.started.Store(true)
	c.emitState(log.StateAccepted, log.StateHandshaking, "")
	start := time.Now()
	if err := c.tlsConn.HandshakeContext(ctx); err != nil {
		c.hsErr = fmt.Errorf("tls handshake: %w", err)
		c.fail(err)
		return c.hsErr
	}

	state := c.tlsConn.ConnectionState()
	if len(state.PeerCertificates) > 0 {
		chain := make([]listener.CertificateData, len(state.PeerCertificates))
		for i, cert := range state.PeerCertificates {
			chain[i] = cert.Raw
		}
		c.certs.Set(chain)
	}

	c.rawMu.Lock()
	c.streaming.Store(true)
	c.rawMu.Unlock()

	c.emitState(log.StateHandshaking, log.StateStreaming, "")
	c.emit(log.Event{
		Category: log.CategoryHandshake,
		Handshake: &log.HandshakeEvent{
			Version:          state.Version,
			CipherSuite:      state.CipherSuite,
			Protocol:         state.NegotiatedProtocol,
			ServerName:       state.ServerName,
			PeerCertificates: len(state.PeerCertificates),
			Resumed:          state.DidResume,
			Duration:         time.Since(start),
		},
	})
	return nil
}

// fail releases the raw transport after a handshake error.
func (c *Conn) fail(err error) {
	c.rawMu.Lock()
	raw := c.raw
	c.raw = nil
	c.failed.Store(true)
	c.rawMu.Unlock()

	if raw != nil {
		_ = raw.Close()
	}

	if c.logger != nil {
		c.logger.Warn("TLS handshake failed",
			"conn", c.id,
			"remote", c.peer.String(),
			"error", err)
	}
	c.emitState(log.StateHandshaking, log.StateFailed, err.Error())
	c.emit(log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTLS,
			Message: err.Error(),
			Context: "handshake",
		},
	})
}

// Read completes the handshake if needed, then reads decrypted data.
func (c *Conn) Read(p []byte) (int, error) {
	if err := c.Handshake(context.Background()); err != nil {
		return 0, err
	}
	return c.tlsConn.Read(p)
}

// Write completes the handshake if needed, then writes encrypted data.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.Handshake(context.Background()); err != nil {
		return 0, err
	}
	return c.tlsConn.Write(p)
}

// Flush acts on the raw transport while it is held. TLS records are
// written out immediately, so there is nothing to flush afterwards.
func (c *Conn) Flush() error {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()

	if c.raw == nil || c.streaming.Load() {
		return nil
	}
	return c.raw.Flush()
}

// Shutdown sends close_notify on an established stream. Before the
// handshake it shuts down the raw transport; after a failed handshake it
// does nothing.
func (c *Conn) Shutdown() error {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()

	switch {
	case c.raw == nil:
		return nil
	case c.streaming.Load():
		return c.tlsConn.CloseWrite()
	default:
		return c.raw.Shutdown()
	}
}

// Close closes the connection. After a failed handshake the transport is
// already gone and Close returns nil.
func (c *Conn) Close() error {
	if c.failed.Load() {
		return nil
	}
	if c.closed.CompareAndSwap(false, true) {
		old := log.StateAccepted
		switch {
		case c.streaming.Load():
			old = log.StateStreaming
		case c.started.Load():
			old = log.StateHandshaking
		}
		c.emitState(old, log.StateClosed, "")
	}
	return c.tlsConn.Close()
}

// PeerAddress returns the peer address captured at accept.
func (c *Conn) PeerAddress() (bindable.Addr, bool) {
	return c.peer, c.hasPeer
}

// LocalAddr returns the listener address.
func (c *Conn) LocalAddr() (bindable.Addr, bool) {
	return c.local, c.local.Kind() != bindable.KindNone
}

// EnableNoDelay forwards to the raw transport while it is held.
func (c *Conn) EnableNoDelay() error {
	c.rawMu.Lock()
	defer c.rawMu.Unlock()

	if c.raw == nil {
		return nil
	}
	return c.raw.EnableNoDelay()
}

// PeerCertificates returns the peer chain store. It is never nil; it is
// empty until the handshake has completed.
func (c *Conn) PeerCertificates() *listener.Certificates {
	return c.certs
}

// ConnectionState returns the TLS state. It is only meaningful after the
// handshake.
func (c *Conn) ConnectionState() tls.ConnectionState {
	return c.tlsConn.ConnectionState()
}

// NegotiatedProtocol returns the ALPN protocol, or "" before the
// handshake.
func (c *Conn) NegotiatedProtocol() string {
	if !c.streaming.Load() {
		return ""
	}
	return c.tlsConn.ConnectionState().NegotiatedProtocol
}

// SetDeadline sets the read and write deadlines of the transport.
func (c *Conn) SetDeadline(t time.Time) error { return c.tlsConn.SetDeadline(t) }

// SetReadDeadline sets the read deadline of the transport.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.tlsConn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline of the transport.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.tlsConn.SetWriteDeadline(t) }

func (c *Conn) emitState(old, state, reason string) {
	c.emit(log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: old,
			NewState: state,
			Reason:   reason,
		},
	})
}

func (c *Conn) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = c.id
	e.Layer = log.LayerTLS
	if c.local.Kind() != bindable.KindNone {
		e.LocalAddr = c.local.String()
	}
	if c.hasPeer {
		e.RemoteAddr = c.peer.String()
	}
	c.events.Log(e)
}

var (
	_ listener.Connection = (*Conn)(nil)
	_ listener.Identified = (*Conn)(nil)
)
