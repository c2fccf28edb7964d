// Package ratelimit implements the global + per-platform token-bucket
// rate limiter (spec §4.4), built on golang.org/x/time/rate (the teacher's
// go.mod dependency, previously unused, given a home here).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/streamwatch-core/internal/classify"
)

// Limiter sequences a global bucket and per-platform buckets (with a
// "default" fallback for unknown platforms), per spec §4.4.
type Limiter struct {
	enabled  bool
	global   *rate.Limiter
	platform map[string]*rate.Limiter
}

// BucketConfig describes one token bucket's rate and capacity.
type BucketConfig struct {
	Rate     float64
	Capacity int
}

// New builds a Limiter. platformBuckets keys are lowercase platform names
// ("twitch", "youtube", "kick") plus "default".
func New(enabled bool, global BucketConfig, platformBuckets map[string]BucketConfig) *Limiter {
	l := &Limiter{
		enabled:  enabled,
		global:   rate.NewLimiter(rate.Limit(global.Rate), global.Capacity),
		platform: make(map[string]*rate.Limiter, len(platformBuckets)),
	}
	for name, cfg := range platformBuckets {
		l.platform[name] = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Capacity)
	}
	return l
}

func (l *Limiter) bucketFor(url string) *rate.Limiter {
	platform := classify.Classify(url).RateLimitBucket()
	if b, ok := l.platform[platform]; ok {
		return b
	}
	return l.platform["default"]
}

// Acquire requires one token from the global bucket, then one from the
// platform bucket, blocking up to timeout total (the platform acquisition
// gets whatever of timeout remains after the global one). Returns false if
// either bucket could not grant a token within the deadline.
func (l *Limiter) Acquire(url string, timeout time.Duration) bool {
	if !l.enabled {
		return true
	}
	deadline := time.Now().Add(timeout)

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	if err := l.global.Wait(ctx); err != nil {
		return false
	}

	platformBucket := l.bucketFor(url)
	if platformBucket == nil {
		return true
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return platformBucket.Allow()
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), remaining)
	defer cancel2()
	return platformBucket.Wait(ctx2) == nil
}

// TryAcquire is the non-blocking variant: returns false immediately if
// either bucket is currently empty.
func (l *Limiter) TryAcquire(url string) bool {
	if !l.enabled {
		return true
	}
	if !l.global.Allow() {
		return false
	}
	platformBucket := l.bucketFor(url)
	if platformBucket == nil {
		return true
	}
	return platformBucket.Allow()
}
