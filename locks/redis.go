package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix    = "advert-lock:"
	retryBackoff = 25 * time.Millisecond
	minTTL       = 100 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// refreshScript extends the key's expiry only if it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// ErrLockTimeout is returned when the lock could not be acquired before ctx ended.
var ErrLockTimeout = errors.New("lock not acquired")

// Redis is a distributed lock shared by every instance using the same server.
// The key expires after ttl unless refreshed; a live holder refreshes it every
// ttl/3, so only a holder that dies loses the lock.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}

	stop := make(chan struct{})
	go r.keepAlive(redisKey, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// The caller's ctx may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				logrus.WithError(err).WithField("key", redisKey).Warn("Failed to release lock")
			}
		})
	}, nil
}

// keepAlive extends the lock until stop is closed or the token was lost.
func (r *Redis) keepAlive(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
		extended, err := refreshScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("key", redisKey).Warn("Failed to refresh lock")
			continue
		}
		if extended == 0 {
			logrus.WithField("key", redisKey).Warn("Lock lost before release")
			return
		}
	}
}
