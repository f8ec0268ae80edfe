package safety

import (
	"sync"
	"time"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// RateLimiterConfig configures a token-bucket RateLimiter.
type RateLimiterConfig struct {
	Capacity     float64       // max tokens per bucket
	RefillPerSec float64       // tokens added per second
	BucketTTL    time.Duration // idle bucket eviction window
	MaxBuckets   int           // LRU cap on distinct keys tracked at once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

// RateLimiter is a keyed token bucket with TTL and max-cardinality eviction,
// so a flood of distinct tenant/tool keys can't grow the bucket map without
// bound.
type RateLimiter struct {
	cfg RateLimiterConfig
	mu  sync.Mutex
	// buckets plus order tracks insertion/touch order for LRU eviction.
	buckets map[string]*bucket
	order   []string
	now     func() time.Time
}

// NewRateLimiter constructs a limiter from cfg, defaulting BucketTTL to ten
// minutes and MaxBuckets to 10000 when unset.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.BucketTTL <= 0 {
		cfg.BucketTTL = 10 * time.Minute
	}
	if cfg.MaxBuckets <= 0 {
		cfg.MaxBuckets = 10000
	}
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow attempts to consume n tokens from key's bucket, creating it with a
// full capacity if it doesn't exist. It returns a CodeRateLimited AppError
// when the bucket has insufficient tokens.
func (r *RateLimiter) Allow(key string, n float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictExpired(now)

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{tokens: r.cfg.Capacity, lastRefill: now}
		r.addBucket(key, b, now)
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = minFloat(r.cfg.Capacity, b.tokens+elapsed*r.cfg.RefillPerSec)
		b.lastRefill = now
	}
	b.lastUsed = now
	r.touch(key)

	if b.tokens < n {
		return apperrors.NewRateLimitedError("rate limit exceeded for " + key)
	}
	b.tokens -= n
	return nil
}

func (r *RateLimiter) addBucket(key string, b *bucket, now time.Time) {
	b.lastUsed = now
	r.buckets[key] = b
	r.order = append(r.order, key)
	for len(r.buckets) > r.cfg.MaxBuckets && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.buckets, oldest)
	}
}

func (r *RateLimiter) touch(key string) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.order = append(r.order, key)
}

func (r *RateLimiter) evictExpired(now time.Time) {
	if r.cfg.BucketTTL <= 0 {
		return
	}
	remaining := r.order[:0]
	for _, k := range r.order {
		b := r.buckets[k]
		if b != nil && now.Sub(b.lastUsed) > r.cfg.BucketTTL {
			delete(r.buckets, k)
			continue
		}
		remaining = append(remaining, k)
	}
	r.order = remaining
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
