package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a simple token-bucket limiter. A bucket starts full
// and refills at refillRate tokens per second up to capacity.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	add := int(elapsed.Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Remaining reports the tokens currently available.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// KeyedLimiter keeps one bucket per key, lazily created. Used to
// throttle the dev faucet per address.
type KeyedLimiter struct {
	capacity   int
	refillRate int
	buckets    map[string]*TokenBucket
	mu         sync.Mutex
}

func NewKeyedLimiter(capacity, refillRate int) *KeyedLimiter {
	return &KeyedLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		buckets:    make(map[string]*TokenBucket),
	}
}

func (kl *KeyedLimiter) bucket(key string) *TokenBucket {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	b, ok := kl.buckets[key]
	if !ok {
		b = NewTokenBucket(kl.capacity, kl.refillRate)
		kl.buckets[key] = b
	}
	return b
}

func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.bucket(key).Allow()
}
