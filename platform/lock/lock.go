// Package lock serializes mutations that target the same key.
// This is part of the platform layer and contains no business logic.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the wait deadline passes before the key is free.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker acquires an exclusive lease on a key. The returned release func must
// be called exactly once; it never fails loudly because leases also expire.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const retryInterval = 25 * time.Millisecond

// waitFor polls try until it succeeds, ctx is done, or wait elapses.
func waitFor(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotAcquired
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
