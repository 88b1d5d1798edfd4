package listener_test

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/portico-http/portico/pkg/bindable"
	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/listener/mocks"
	"github.com/portico-http/portico/pkg/log"
)

type fakeConn struct {
	mu           sync.Mutex
	nodelayErr   error
	nodelayCalls int
}

func (c *fakeConn) Read([]byte) (int, error) { return 0, io.EOF }
func (c *fakeConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *fakeConn) Flush() error { return nil }
func (c *fakeConn) Shutdown() error { return nil }
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) PeerAddress() (bindable.Addr, bool) { return bindable.Addr{}, false }
func (c *fakeConn) PeerCertificates() *listener.Certificates {
	return nil
}

func (c *fakeConn) EnableNoDelay() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodelayCalls++
	return c.nodelayErr
}

func (c *fakeConn) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodelayCalls
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func acceptErr(errno syscall.Errno) error {
	return &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", errno)}
}

func newMockListener(t *testing.T) *mocks.MockListener {
	ml := mocks.NewMockListener(t)
	ml.EXPECT().LocalAddr().Return(bindable.Addr{}, false).Maybe()
	return ml
}

func TestIncomingRetriesConnectionErrorsImmediately(t *testing.T) {
	ml := newMockListener(t)
	conn := &fakeConn{}
	ml.EXPECT().Accept(mock.Anything).Return(nil, acceptErr(syscall.ECONNABORTED)).Once()
	ml.EXPECT().Accept(mock.Anything).Return(nil, acceptErr(syscall.ECONNRESET)).Once()
	ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

	events := &recordingLogger{}
	in := listener.NewIncoming(ml, listener.WithEventLogger(events))

	start := time.Now()
	got, err := in.Accept(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Less(t, time.Since(start), listener.DefaultSleepOnErrors)

	backoffs := events.byCategory(log.CategoryBackoff)
	require.Len(t, backoffs, 2)
	for _, e := range backoffs {
		assert.Equal(t, log.ErrorClassConnection, e.Backoff.Class)
		assert.Zero(t, e.Backoff.Delay)
	}
}

func TestIncomingBacksOffOnResourceErrors(t *testing.T) {
	ml := newMockListener(t)
	conn := &fakeConn{}
	ml.EXPECT().Accept(mock.Anything).Return(nil, acceptErr(syscall.EMFILE)).Twice()
	ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

	events := &recordingLogger{}
	in := listener.NewIncoming(ml, listener.WithEventLogger(events)).
		SleepOnErrors(50 * time.Millisecond)

	start := time.Now()
	got, err := in.Accept(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, uint64(1), in.Accepted())

	backoffs := events.byCategory(log.CategoryBackoff)
	require.Len(t, backoffs, 2)
	assert.Equal(t, log.ErrorClassResource, backoffs[0].Backoff.Class)
	assert.Equal(t, 50*time.Millisecond, backoffs[0].Backoff.Delay)
}

func TestIncomingResourceErrorFatalWithoutBackoff(t *testing.T) {
	ml := newMockListener(t)
	ml.EXPECT().Accept(mock.Anything).Return(nil, acceptErr(syscall.EMFILE)).Once()

	events := &recordingLogger{}
	in := listener.NewIncoming(ml, listener.WithEventLogger(events)).SleepOnErrors(0)

	got, err := in.Accept(context.Background())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, syscall.EMFILE)
	assert.Len(t, events.byCategory(log.CategoryError), 1)

	states := events.byCategory(log.CategoryState)
	require.Len(t, states, 1)
	assert.Equal(t, log.StateEntityListener, states[0].StateChange.Entity)
	assert.Equal(t, log.StateFailed, states[0].StateChange.NewState)
	assert.Contains(t, states[0].StateChange.Reason, "too many open files")
}

func TestIncomingCloseEmitsListenerState(t *testing.T) {
	ml := newMockListener(t)
	ml.EXPECT().Close().Return(nil).Twice()

	events := &recordingLogger{}
	in := listener.NewIncoming(ml, listener.WithEventLogger(events))
	require.NoError(t, in.Close())
	require.NoError(t, in.Close())

	states := events.byCategory(log.CategoryState)
	require.Len(t, states, 1)
	assert.Equal(t, log.StateEntityListener, states[0].StateChange.Entity)
	assert.Equal(t, log.StateClosed, states[0].StateChange.NewState)
	assert.Equal(t, log.LayerAccept, states[0].Layer)
}

func TestIncomingClosedListenerIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"net closed", &net.OpError{Op: "accept", Err: net.ErrClosed}},
		{"listener closed", listener.ErrListenerClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ml := newMockListener(t)
			ml.EXPECT().Accept(mock.Anything).Return(nil, tt.err).Once()

			in := listener.NewIncoming(ml).SleepOnErrors(time.Second)
			_, err := in.Accept(context.Background())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIncomingCancelKeepsPendingDelay(t *testing.T) {
	ml := newMockListener(t)
	conn := &fakeConn{}
	ml.EXPECT().Accept(mock.Anything).Return(nil, acceptErr(syscall.ENFILE)).Once()
	ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

	in := listener.NewIncoming(ml).SleepOnErrors(200 * time.Millisecond)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := in.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := in.Accept(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestIncomingNoDelay(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		ml := newMockListener(t)
		conn := &fakeConn{}
		ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

		_, err := listener.NewIncoming(ml).Accept(context.Background())
		require.NoError(t, err)
		assert.Zero(t, conn.calls())
	})

	t.Run("enabled", func(t *testing.T) {
		ml := newMockListener(t)
		conn := &fakeConn{}
		ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

		_, err := listener.NewIncoming(ml).NoDelay(true).Accept(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, conn.calls())
	})

	t.Run("failure still yields connection", func(t *testing.T) {
		ml := newMockListener(t)
		conn := &fakeConn{nodelayErr: errors.New("not supported")}
		ml.EXPECT().Accept(mock.Anything).Return(conn, nil).Once()

		events := &recordingLogger{}
		got, err := listener.NewIncoming(ml, listener.WithEventLogger(events)).
			NoDelay(true).
			Accept(context.Background())
		require.NoError(t, err)
		assert.Same(t, conn, got)
		errs := events.byCategory(log.CategoryError)
		require.Len(t, errs, 1)
		assert.Equal(t, log.LayerTransport, errs[0].Layer)
		assert.Equal(t, "enable nodelay", errs[0].Error.Context)
	})
}

func TestIncomingEmitsAcceptedState(t *testing.T) {
	ml := newMockListener(t)
	ml.EXPECT().Accept(mock.Anything).Return(&fakeConn{}, nil).Once()

	events := &recordingLogger{}
	_, err := listener.NewIncoming(ml, listener.WithEventLogger(events)).Accept(context.Background())
	require.NoError(t, err)

	states := events.byCategory(log.CategoryState)
	require.Len(t, states, 1)
	assert.Equal(t, log.StateAccepted, states[0].StateChange.NewState)
	assert.NotEmpty(t, states[0].ConnectionID)
	assert.Equal(t, log.LayerAccept, states[0].Layer)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, listener.IsConnectionError(acceptErr(syscall.ECONNREFUSED)))
	assert.True(t, listener.IsConnectionError(acceptErr(syscall.ECONNABORTED)))
	assert.True(t, listener.IsConnectionError(acceptErr(syscall.ECONNRESET)))
	assert.False(t, listener.IsConnectionError(acceptErr(syscall.EMFILE)))
	assert.False(t, listener.IsConnectionError(errors.New("boom")))
}
