package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when unlocking a lock this locker does not hold
var ErrNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still holds our token
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisClient is the subset of redis.UniversalClient used by Redis
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Redis is a Locker shared by every process using the same key. The TTL
// bounds how long a crashed holder keeps the lock.
type Redis struct {
	client RedisClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedis creates a distributed lock on key
func NewRedis(client RedisClient, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// TryLock sets the key if absent
func (r *Redis) TryLock(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != "" {
		return false, nil
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", r.key, err)
	}
	if ok {
		r.token = token
	}
	return ok, nil
}

// Unlock deletes the key if it still carries this locker's token
func (r *Redis) Unlock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token == "" {
		return ErrNotHeld
	}

	token := r.token
	r.token = ""
	deleted, err := r.client.Eval(ctx, releaseScript, []string{r.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", r.key, err)
	}
	if deleted == 0 {
		return fmt.Errorf("lock %s expired before release: %w", r.key, ErrNotHeld)
	}
	return nil
}
