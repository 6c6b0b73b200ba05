package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose lease expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a lease-based mutual exclusion lock shared between replicas.
// Key format: lock:<name>
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// NewLock creates a Lock named name. Each Lock value holds its own token.
func NewLock(client *redis.Client, name string) *Lock {
	return &Lock{client: client, key: "lock:" + name, token: uuid.NewString()}
}

// Acquire takes the lock for ttl. It reports false when another holder has it.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release gives the lock back if this Lock still holds it.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
