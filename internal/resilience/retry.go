// Package resilience provides retry-with-jittered-backoff and per-operation
// circuit breakers, composed as retry-outside-breaker (spec §4.5).
package resilience

import (
	"math/rand"
	"time"

	"github.com/snapetech/streamwatch-core/internal/swerr"
)

// RetryConfig mirrors resilience.py's RetryConfig dataclass.
type RetryConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultRetryConfig matches the spec's config-key defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        60 * time.Second,
	ExponentialBase: 2.0,
	Jitter:          true,
}

// shouldRetry decides whether attempt (1-indexed) should be retried given
// kind, per spec §4.5: retry on Network/Timeout, at most twice on Generic,
// never on Auth or StreamNotFound.
func shouldRetry(cfg RetryConfig, kind swerr.Kind, attempt int) bool {
	if attempt >= cfg.MaxAttempts {
		return false
	}
	switch kind {
	case swerr.KindNetwork, swerr.KindTimeout:
		return true
	case swerr.KindGeneric:
		return attempt <= 2
	default:
		return false
	}
}

// calculateDelay returns the delay before retry attempt n (1-indexed):
// min(max_delay, base_delay * exponential_base^(n-1)), optionally
// perturbed by uniform +/-25% jitter.
func calculateDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * pow(cfg.ExponentialBase, attempt-1)
	if max := float64(cfg.MaxDelay); delay > max {
		delay = max
	}
	if cfg.Jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Retry executes op up to cfg.MaxAttempts times, honoring the retry
// eligibility and backoff rules above. A non-taxonomy error (one that does
// not carry a swerr.Kind) is treated as Generic for retry purposes.
func Retry[T any](cfg RetryConfig, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err
		kind, ok := swerr.KindOf(err)
		if !ok {
			kind = swerr.KindGeneric
		}
		if !shouldRetry(cfg, kind, attempt) {
			return zero, err
		}
		if attempt < cfg.MaxAttempts {
			time.Sleep(calculateDelay(cfg, attempt))
		}
	}
	return zero, lastErr
}
