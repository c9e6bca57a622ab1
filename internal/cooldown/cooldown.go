// Package cooldown suppresses repeated alerts for the same ticker and rule.
package cooldown

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"KabuSentinel/internal/model"
)

// Store tracks when each alert stream last went out. Allow only checks; the
// cooldown starts when the caller marks the key after a successful delivery.
type Store interface {
	Allow(ctx context.Context, key string, at time.Time) (bool, error)
	Mark(ctx context.Context, key string, at time.Time) error
}

// Key identifies one alert stream.
func Key(sig model.Signal) string {
	return sig.Ticker + "|" + sig.RuleID
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps cooldowns for the life of the process.
type MemoryStore struct {
	Window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{Window: window, last: make(map[string]time.Time)}
}

func (m *MemoryStore) Allow(_ context.Context, key string, at time.Time) (bool, error) {
	if m.Window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.last[key]
	return !ok || at.Sub(prev) >= m.Window, nil
}

func (m *MemoryStore) Mark(_ context.Context, key string, at time.Time) error {
	if m.Window <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last[key] = at
	return nil
}

const keyPrefix = "kabusentinel:cooldown:"

// RedisStore shares cooldowns between processes. The stored value is the mark
// time and Allow compares against it, like MemoryStore. The key TTL only
// removes streams that have gone quiet.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

func (r *RedisStore) Allow(ctx context.Context, key string, at time.Time) (bool, error) {
	if r.window <= 0 {
		return true, nil
	}
	v, err := r.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// not ours; treat as no cooldown
		return true, nil
	}
	return at.Sub(time.Unix(0, nanos)) >= r.window, nil
}

func (r *RedisStore) Mark(ctx context.Context, key string, at time.Time) error {
	if r.window <= 0 {
		return nil
	}
	return r.client.Set(ctx, keyPrefix+key, at.UnixNano(), r.window).Err()
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
