package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// compareAndDelete removes the key only while it still holds the caller's
// token, so an instance whose lease expired cannot drop a newer owner's lock.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// lease is a single named SET NX lock with a fixed TTL.
type lease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func newLease(client *redis.Client, key string, ttl time.Duration) *lease {
	if client == nil || key == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &lease{client: client, key: key, ttl: ttl}
}

// acquire returns the owner token and whether the lease was granted.
func (l *lease) acquire(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	granted, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !granted {
		return "", false, nil
	}
	return token, true, nil
}

func (l *lease) release(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return compareAndDelete.Run(ctx, l.client, []string{l.key}, token).Err()
}
