package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker used when Redis is not configured and
// in tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	wait time.Duration
}

// NewLocalLocker creates a LocalLocker that waits up to wait for a busy key.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{}), wait: wait}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	err := waitFor(ctx, l.wait, func() (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, busy := l.held[key]; busy {
			return false, nil
		}
		l.held[key] = struct{}{}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
