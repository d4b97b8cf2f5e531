package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig tunes the exponential backoff applied to API calls.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	JitterEnabled bool          `json:"jitter_enabled"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry runs fn with the default backoff policy. Auth failures and other
// non-transient errors abort immediately.
func (c *Client) Retry(ctx context.Context, fn func() error) error {
	return c.RetryWithConfig(ctx, fn, DefaultRetryConfig())
}

func (c *Client) RetryWithConfig(ctx context.Context, fn func() error, config RetryConfig) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries || !IsRetryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt, config)):
		}
	}
	return lastErr
}

func backoffDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	if attempt > 0 {
		delay = time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.JitterEnabled {
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}
