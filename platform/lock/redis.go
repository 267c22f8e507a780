package lock

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"leadconsole_backend/platform/config"
	"leadconsole_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "leadconsole:lock:"

// Only the holder of the token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds leases as SET NX PX keys so every API replica pointed at
// the same Redis shares them.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    *logger.Logger
}

// NewRedisClient builds a go-redis client from the configured URL.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() && opts.TLSConfig != nil {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return redis.NewClient(opts), nil
}

// NewRedisLocker creates a RedisLocker on an existing client.
func NewRedisLocker(client *redis.Client, cfg config.LockConfig, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    cfg.GetLockTTL(),
		wait:   cfg.GetLockWait(),
		log:    log,
	}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	err := waitFor(ctx, l.wait, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquire %s: %w", key, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && l.log != nil {
				l.log.Warn("lock release failed", "key", key, "error", err.Error())
			}
		})
	}, nil
}
