package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store decides whether the client identified by key may make another request
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryStore is a per-process token bucket per key
type MemoryStore struct {
	tokens         map[string]float64
	lastRefill     map[string]time.Time
	mu             sync.Mutex
	rate           float64 // tokens per second
	bucketSize     float64 // maximum tokens
	refillInterval time.Duration
	now            func() time.Time
}

func NewMemoryStore(rate float64, bucketSize float64) *MemoryStore {
	return &MemoryStore{
		tokens:         make(map[string]float64),
		lastRefill:     make(map[string]time.Time),
		rate:           rate,
		bucketSize:     bucketSize,
		refillInterval: time.Second,
		now:            time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if _, exists := s.lastRefill[key]; !exists {
		s.tokens[key] = s.bucketSize
		s.lastRefill[key] = now
	}

	elapsed := now.Sub(s.lastRefill[key])
	newTokens := float64(elapsed) / float64(s.refillInterval) * s.rate
	s.tokens[key] = math.Min(s.bucketSize, s.tokens[key]+newTokens)
	s.lastRefill[key] = now

	if s.tokens[key] < 1 {
		return false, nil
	}

	s.tokens[key]--
	return true, nil
}

// tokenBucketScript refills and takes one token atomically.
// KEYS[1] bucket; ARGV rate/s, burst, now (ms), ttl (ms). Returns 1 when allowed.
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call("HMGET", KEYS[1], "tokens", "ts")
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end
local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(burst, tokens + elapsed / 1000 * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return allowed
`)

// RedisStore shares token buckets between instances through Redis
type RedisStore struct {
	client     redis.UniversalClient
	rate       float64
	bucketSize float64
	prefix     string
	ttl        time.Duration
	now        func() time.Time
}

func NewRedisStore(client redis.UniversalClient, rate float64, bucketSize float64) *RedisStore {
	// idle buckets expire once they would have refilled completely
	refill := time.Duration(bucketSize / rate * float64(time.Second))
	return &RedisStore{
		client:     client,
		rate:       rate,
		bucketSize: bucketSize,
		prefix:     "metachecker:ratelimit:",
		ttl:        refill + time.Second,
		now:        time.Now,
	}
}

func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := tokenBucketScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		s.rate, s.bucketSize, s.now().UnixMilli(), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}

// RateLimiter rejects clients that exhausted their bucket
type RateLimiter struct {
	store  Store
	logger *zap.Logger
}

func NewRateLimiter(store Store, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger}
}

// RateLimit lets requests through when the store is unavailable
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed, err := rl.store.Allow(c.Request.Context(), ip)
		if err != nil {
			rl.logger.Warn("Rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
