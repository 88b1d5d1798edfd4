package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/portico-http/portico/pkg/bindable"
	"github.com/portico-http/portico/pkg/log"
)

// DefaultSleepOnErrors is the delay Incoming waits after a listener-wide
// accept error before trying again.
const DefaultSleepOnErrors = 250 * time.Millisecond

// Incoming turns a Listener into a resilient stream of connections. It is
// the single retry and backoff policy point for every transport.
//
// Configure it with SleepOnErrors and NoDelay before the first Accept.
// Accept must not be called concurrently.
type Incoming struct {
	listener      Listener
	sleepOnErrors time.Duration
	nodelay       bool

	logger *slog.Logger
	events log.Logger

	// pendingDelay is armed after a listener-wide error and survives a
	// cancelled Accept, so the next call still honours the delay.
	pendingDelay *time.Timer

	accepted atomic.Uint64
	closed   atomic.Bool
}

// IncomingOption configures an Incoming.
type IncomingOption func(*Incoming)

// WithLogger sets the operational logger. Nil disables logging.
func WithLogger(logger *slog.Logger) IncomingOption {
	return func(i *Incoming) { i.logger = logger }
}

// WithEventLogger sets the connection event logger.
func WithEventLogger(events log.Logger) IncomingOption {
	return func(i *Incoming) { i.events = log.OrNoop(events) }
}

// NewIncoming wraps listener. Backoff defaults to DefaultSleepOnErrors and
// no-delay requests are off.
func NewIncoming(listener Listener, opts ...IncomingOption) *Incoming {
	i := &Incoming{
		listener:      listener,
		sleepOnErrors: DefaultSleepOnErrors,
		events:        log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SleepOnErrors sets how long to wait after an accept error that is not
// specific to one connection.
//
// Such errors are usually resource exhaustion: the process hit its open
// file limit and accept fails with EMFILE. Waiting gives the application a
// chance to close files before the next attempt, and the error is logged
// because it still matters. A zero duration instead treats these errors
// as fatal, like running out of memory, and Accept returns them.
//
// Default is 250ms.
func (i *Incoming) SleepOnErrors(d time.Duration) *Incoming {
	if d < 0 {
		d = 0
	}
	i.sleepOnErrors = d
	return i
}

// NoDelay sets whether to call EnableNoDelay on every accepted connection.
// Default is false.
func (i *Incoming) NoDelay(nodelay bool) *Incoming {
	i.nodelay = nodelay
	return i
}

// Addr returns the wrapped listener's address.
func (i *Incoming) Addr() (bindable.Addr, bool) {
	return i.listener.LocalAddr()
}

// Accepted returns the number of connections yielded so far.
func (i *Incoming) Accepted() uint64 {
	return i.accepted.Load()
}

// Close closes the wrapped listener. It may be called while Accept is
// blocked; the blocked call then returns the listener's error.
func (i *Incoming) Close() error {
	if i.closed.CompareAndSwap(false, true) {
		i.emitListenerState(log.StateClosed, "")
	}
	return i.listener.Close()
}

// String names the wrapped listener.
func (i *Incoming) String() string {
	addr, _ := i.listener.LocalAddr()
	return fmt.Sprintf("Incoming{listener: %T %s}", i.listener, addr)
}

// Accept returns the next connection.
//
// Connection-scoped errors are logged and retried immediately. Other
// errors are retried after the configured delay, or returned when no delay
// is configured. Errors from a closed listener and context cancellation
// are always returned.
func (i *Incoming) Accept(ctx context.Context) (Connection, error) {
	for {
		if i.pendingDelay != nil {
			select {
			case <-i.pendingDelay.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			i.pendingDelay = nil
		}

		conn, err := i.listener.Accept(ctx)
		if err == nil {
			i.prepare(conn)
			return conn, nil
		}

		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, net.ErrClosed), errors.Is(err, ErrListenerClosed):
			return nil, err
		case IsConnectionError(err):
			i.warn("single connection accept error; accepting next now", err)
			i.emitBackoff(log.ErrorClassConnection, 0, err)
		case i.sleepOnErrors > 0:
			i.warn("accept error; recovery attempt after delay", err,
				"delay_ms", i.sleepOnErrors.Milliseconds())
			i.emitBackoff(log.ErrorClassResource, i.sleepOnErrors, err)
			i.pendingDelay = time.NewTimer(i.sleepOnErrors)
		default:
			i.emitError(err)
			i.emitListenerState(log.StateFailed, err.Error())
			return nil, err
		}
	}
}

// prepare applies per-connection settings and records the accept.
func (i *Incoming) prepare(conn Connection) {
	i.accepted.Add(1)

	id := connectionID(conn)
	remote, _ := conn.PeerAddress()

	if i.nodelay {
		if err := conn.EnableNoDelay(); err != nil {
			i.warn("failed to enable NODELAY", err, "remote", remote.String())
			i.emit(log.Event{
				ConnectionID: id,
				Layer:        log.LayerTransport,
				Category:     log.CategoryError,
				RemoteAddr:   remote.String(),
				Error: &log.ErrorEventData{
					Layer:   log.LayerTransport,
					Message: err.Error(),
					Context: "enable nodelay",
				},
			})
		}
	}

	i.emit(log.Event{
		ConnectionID: id,
		Category:     log.CategoryState,
		RemoteAddr:   remote.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			NewState: log.StateAccepted,
		},
	})
}

// IsConnectionError reports whether err affects only the single connection
// being accepted, so that accepting another one can proceed at once.
func IsConnectionError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

func connectionID(conn Connection) string {
	if c, ok := conn.(Identified); ok {
		return c.ID()
	}
	return uuid.New().String()
}

func (i *Incoming) warn(msg string, err error, args ...any) {
	if i.logger == nil {
		return
	}
	addr, _ := i.listener.LocalAddr()
	i.logger.Warn(msg, append([]any{"listener", addr.String(), "error", err}, args...)...)
}

func (i *Incoming) emitBackoff(class log.ErrorClass, delay time.Duration, err error) {
	i.emit(log.Event{
		Category: log.CategoryBackoff,
		Backoff: &log.BackoffEvent{
			Class:   class,
			Delay:   delay,
			Message: err.Error(),
		},
	})
}

func (i *Incoming) emitError(err error) {
	i.emit(log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerAccept,
			Message: err.Error(),
			Context: "accept",
		},
	})
}

func (i *Incoming) emitListenerState(state, reason string) {
	i.emit(log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityListener,
			NewState: state,
			Reason:   reason,
		},
	})
}

// emit stamps e. Events without a Layer belong to the accept layer.
func (i *Incoming) emit(e log.Event) {
	e.Timestamp = time.Now()
	if addr, ok := i.listener.LocalAddr(); ok {
		e.LocalAddr = addr.String()
	}
	i.events.Log(e)
}
