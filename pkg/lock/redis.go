package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	redisKeyPrefix    = "lock:"
)

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	TTL        time.Duration
	Wait       time.Duration
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Redis is a single-instance distributed lock built on SET NX PX.
type Redis struct {
	client     redis.UniversalClient
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRedis builds a Redis-backed locker.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultRedisTTL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: cfg.TTL, wait: cfg.Wait, retryDelay: cfg.RetryDelay, logger: cfg.Logger}
}

// Acquire polls SET NX until it wins the key, the wait elapses or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	if r.client == nil {
		return nil, errors.New("redis lock: nil client")
	}
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return r.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Redis) releaser(redisKey, token string) func() {
	return func() {
		// Release must run even when the request context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis lock release failed", zap.String("key", redisKey), zap.Error(err))
		}
	}
}
