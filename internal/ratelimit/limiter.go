package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter admits at most a configured number of events per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps one token bucket per key in process memory. Buckets
// refill at limit/window and start full. A bucket idle for a whole window is
// full again, so it is dropped and recreated on the key's next event.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*memoryBucket
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		buckets: make(map[string]*memoryBucket),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= m.window {
		m.sweep(now)
	}

	bucket, ok := m.buckets[key]
	if !ok {
		bucket = &memoryBucket{limiter: rate.NewLimiter(m.every, m.burst)}
		m.buckets[key] = bucket
	}
	bucket.lastSeen = now

	return bucket.limiter.AllowN(now, 1), nil
}

// sweep drops buckets that have been idle for at least one window. Callers
// hold m.mu.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, bucket := range m.buckets {
		if now.Sub(bucket.lastSeen) >= m.window {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "journal:rate_limit"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil || r.limit <= 0 || r.window <= 0 {
		return true, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	count, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(key)}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return count <= int64(r.limit), nil
}

func (r *RedisLimiter) key(subject string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.TrimSpace(subject))
}
