//go:build !unix

package listener

import (
	"context"
	"errors"
	"time"

	"github.com/portico-http/portico/pkg/bindable"
)

// DefaultPollInterval is unused on this platform.
const DefaultPollInterval = 5 * time.Millisecond

// PolledUnixListener is not available on this platform.
type PolledUnixListener struct{}

// BindUnixPolled always fails on this platform; use BindUnix.
func BindUnixPolled(path string) (*PolledUnixListener, error) {
	return nil, errors.ErrUnsupported
}

// SetPollInterval does nothing.
func (l *PolledUnixListener) SetPollInterval(time.Duration) {}

// LocalAddr reports no address.
func (l *PolledUnixListener) LocalAddr() (bindable.Addr, bool) { return bindable.Addr{}, false }

// Accept always fails.
func (l *PolledUnixListener) Accept(context.Context) (Connection, error) {
	return nil, errors.ErrUnsupported
}

// Close does nothing.
func (l *PolledUnixListener) Close() error { return nil }
