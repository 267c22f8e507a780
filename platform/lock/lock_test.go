package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadconsole_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type lockConfig struct{}

func (lockConfig) GetRedisURL() string        { return "" }
func (lockConfig) GetLockTTL() time.Duration  { return time.Second }
func (lockConfig) GetLockWait() time.Duration { return 60 * time.Millisecond }

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, lockConfig{}, logger.NewDiscard()), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "S1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := locker.Acquire(ctx, "S1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	other, err := locker.Acquire(ctx, "S2")
	if err != nil {
		t.Fatalf("independent key should be free: %v", err)
	}
	other()

	release()
	again, err := locker.Acquire(ctx, "S1")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestRedisLockerReleaseKeepsForeignLease(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "S1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Simulate expiry followed by another holder taking the key.
	mr.FastForward(2 * time.Second)
	if err := mr.Set(keyPrefix+"S1", "someone-else"); err != nil {
		t.Fatalf("seed foreign lease: %v", err)
	}

	release()
	got, err := mr.Get(keyPrefix + "S1")
	if err != nil || got != "someone-else" {
		t.Fatalf("foreign lease was removed: %q %v", got, err)
	}
}

func TestLocalLockerWaitsForRelease(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "S1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	second, err := locker.Acquire(ctx, "S1")
	if err != nil {
		t.Fatalf("second acquire should wait for release: %v", err)
	}
	second()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	release, _ := locker.Acquire(context.Background(), "S1")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "S1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
