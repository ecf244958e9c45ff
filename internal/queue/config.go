package queue

import "time"

// Config tunes the queue's concurrency, retry, and backpressure
// behavior. All fields have spec-mandated defaults applied by
// DefaultConfig.
type Config struct {
	// Concurrency is how many jobs a worker pool runs in parallel.
	Concurrency int
	// RateLimit and RateLimitBurst back the token-bucket throughput cap
	// (default 10 jobs / 60s, burst equal to the limit).
	RateLimit      float64
	RateLimitBurst int

	MaxPendingJobs          int
	CircuitBreakerThreshold int
	CircuitBreakerResetMs   int

	RetryBaseDelay   time.Duration
	RetryMaxAttempts int

	CompletedRetention int
	FailedRetention    int
}

// DefaultConfig returns the spec's operational defaults (spec.md
// §4.12).
func DefaultConfig() Config {
	return Config{
		Concurrency:             2,
		RateLimit:               10.0 / 60.0,
		RateLimitBurst:          10,
		MaxPendingJobs:          100,
		CircuitBreakerThreshold: 5,
		CircuitBreakerResetMs:   60000,
		RetryBaseDelay:          5 * time.Second,
		RetryMaxAttempts:        3,
		CompletedRetention:      100,
		FailedRetention:         500,
	}
}

func (c Config) resetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetMs) * time.Millisecond
}
