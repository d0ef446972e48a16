package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-key mutex with expiry, used to keep reminder
// scans from overlapping across processes.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker builds a locker on key.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

// Acquire tries to take the lock once. ok is false when someone else holds it.
func (l *RedisLocker) Acquire(ctx context.Context) (func(), bool, error) {
	if l.client == nil {
		return nil, false, errors.New("redis client not configured")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("scan lock release failed", zap.String("key", l.key), zap.Error(err))
		}
	}
	return release, true, nil
}
