package config

import (
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	for _, k := range []string{
		"STREAMWATCH_STREAMLINK_QUALITY",
		"STREAMWATCH_STREAMLINK_TIMEOUT_LIVENESS",
		"STREAMWATCH_CACHE_TTL_SECONDS",
		"STREAMWATCH_RATELIMIT_GLOBAL_RATE",
	} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.StreamlinkQuality != "best" {
		t.Errorf("StreamlinkQuality = %q, want best", c.StreamlinkQuality)
	}
	if c.TimeoutLiveness != 10*time.Second {
		t.Errorf("TimeoutLiveness = %v, want 10s", c.TimeoutLiveness)
	}
	if c.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %v, want 300s", c.CacheTTL)
	}
	if c.RateLimitGlobalRate != 8.0 {
		t.Errorf("RateLimitGlobalRate = %v, want 8.0", c.RateLimitGlobalRate)
	}
	if rate := c.RateLimitPlatform["twitch"]; rate.Rate != 3.0 || rate.Capacity != 8 {
		t.Errorf("twitch bucket = %+v, want {3.0 8}", rate)
	}
}

func TestLoad_envOverride(t *testing.T) {
	t.Setenv("STREAMWATCH_STREAMLINK_QUALITY", "720p")
	t.Setenv("STREAMWATCH_RESILIENCE_RETRY_BASE_DELAY", "2.5")
	t.Setenv("STREAMWATCH_CACHE_ENABLED", "false")
	c := Load()
	if c.StreamlinkQuality != "720p" {
		t.Errorf("StreamlinkQuality = %q, want 720p", c.StreamlinkQuality)
	}
	if c.RetryBaseDelay != 2500*time.Millisecond {
		t.Errorf("RetryBaseDelay = %v, want 2.5s", c.RetryBaseDelay)
	}
	if c.CacheEnabled {
		t.Error("CacheEnabled should be false")
	}
}
