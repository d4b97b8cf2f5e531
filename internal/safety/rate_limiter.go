package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	capacity   int        // Maximum number of tokens
	tokens     int        // Current number of tokens
	refillRate int        // Tokens added per second
	lastRefill time.Time  // Last time tokens were added
	mutex      sync.Mutex // Protects token count
	name       string     // Name for logging/identification
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		capacity:   capacity,
		tokens:     capacity, // Start with full capacity
		refillRate: refillRate,
		lastRefill: time.Now(),
		name:       name,
	}
}

// Allow checks if an operation is allowed under the rate limit
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN checks if N operations are allowed under the rate limit
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	if rl.tokens >= n {
		rl.tokens -= n
		return true
	}

	return false
}

// Wait waits until an operation is allowed
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN waits until N operations are allowed
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	for {
		if rl.AllowN(n) {
			return nil
		}

		waitTime := rl.calculateWaitTime(n)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// refillTokens adds tokens based on elapsed time
func (rl *RateLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	if elapsed < time.Second {
		return
	}

	tokensToAdd := int(elapsed.Seconds()) * rl.refillRate
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}
}

// calculateWaitTime calculates how long to wait for N tokens
func (rl *RateLimiter) calculateWaitTime(n int) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	if rl.tokens >= n {
		return 0
	}

	tokensNeeded := n - rl.tokens
	secondsToWait := float64(tokensNeeded) / float64(rl.refillRate)

	// Small buffer to account for timing precision
	return time.Duration(secondsToWait*1000+100) * time.Millisecond
}

// GetStats returns current statistics about the rate limiter
func (rl *RateLimiter) GetStats() RateLimiterStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refillTokens()

	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   rl.capacity,
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
		LastRefill: rl.lastRefill,
	}
}

// RateLimiterStats holds statistics about a rate limiter
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     int
	RefillRate int
	LastRefill time.Time
}
