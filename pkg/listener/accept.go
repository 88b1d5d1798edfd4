package listener

import (
	"context"
	"time"
)

// deadliner is the part of *net.TCPListener and *net.UnixListener used to
// interrupt a blocked Accept.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// aLongTimeAgo is a deadline in the past; setting it unblocks Accept.
var aLongTimeAgo = time.Unix(1, 0)

// acceptContext runs a blocking accept that returns early when ctx ends.
// The listener deadline is reset afterwards so the listener stays usable.
func acceptContext[T any](ctx context.Context, l deadliner, accept func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = l.SetDeadline(aLongTimeAgo)
		close(fired)
	})

	c, err := accept()
	if !stop() {
		<-fired
		_ = l.SetDeadline(time.Time{})
		if err != nil {
			return zero, ctx.Err()
		}
	}
	return c, err
}
