package dag

import (
	"context"
	"time"
)

// Host is the cooperative-wait primitive of a durable workflow runtime
// (Temporal-style host). The core does not implement durable execution,
// replay, or signal/query plumbing itself — it only needs to know whether
// it is running inside one, so a `wait` guard can suspend on the host's
// condition-wait primitive instead of busy-polling.
//
// A nil Host means "no host": waits poll predicate on a fixed cadence.
type Host interface {
	// Wait blocks until predicate returns true, ctx is cancelled, or
	// timeout elapses (a timeout of zero means no timeout). It returns
	// false, nil on timeout; predicate errors propagate as the error
	// return; ctx cancellation propagates as ctx.Err().
	Wait(ctx context.Context, predicate func() (bool, error), timeout time.Duration) (bool, error)
}
