// Package checker composes the probe adapter, cache, rate limiter, and
// resilience wrapper into the two operations CheckLiveness and
// FetchMetadata (spec §4.6).
package checker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/snapetech/streamwatch-core/internal/classify"
	"github.com/snapetech/streamwatch-core/internal/metrics"
	"github.com/snapetech/streamwatch-core/internal/probe"
	"github.com/snapetech/streamwatch-core/internal/ratelimit"
	"github.com/snapetech/streamwatch-core/internal/resilience"
	"github.com/snapetech/streamwatch-core/internal/statuscache"
	"github.com/snapetech/streamwatch-core/internal/swerr"
)

// Config bundles the tunables CheckLiveness/FetchMetadata need, independent
// of the shared singletons they're composed with (per spec §9: pass these
// by dependency injection into C6, not by reaching for globals).
type Config struct {
	ProbeBinary      string
	Quality          string
	TwitchDisableAds bool
	TimeoutLiveness  time.Duration
	TimeoutMetadata  time.Duration
	CacheEnabled     bool
	CacheTTL         time.Duration
	Retry            resilience.RetryConfig
}

// Checker composes C2-C5 and is injected with the process-wide C3/C4/C5
// singletons rather than reaching for package-level globals.
type Checker struct {
	cfg      Config
	cache    *statuscache.Cache
	limiter  *ratelimit.Limiter
	breakers *resilience.Registry
}

func New(cfg Config, cache *statuscache.Cache, limiter *ratelimit.Limiter, breakers *resilience.Registry) *Checker {
	return &Checker{cfg: cfg, cache: cache, limiter: limiter, breakers: breakers}
}

// LivenessResult is C6's liveness outcome.
type LivenessResult struct {
	IsLive    bool
	Err       error
	ElapsedMs int
}

// CheckLiveness implements spec §4.6's five-step liveness sequence.
func (c *Checker) CheckLiveness(ctx context.Context, url string) LivenessResult {
	if c.cfg.CacheEnabled {
		if status, ok := c.cache.Get(url); ok {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return LivenessResult{IsLive: status == statuscache.StatusLive}
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	bucket := classify.Classify(url).RateLimitBucket()
	if !c.limiter.Acquire(url, c.cfg.TimeoutLiveness) {
		metrics.RateLimitDenials.WithLabelValues(bucket).Inc()
		return LivenessResult{Err: swerr.New(swerr.KindRateLimited, url, "liveness rate limit denied")}
	}

	breaker := c.breakers.Get("liveness:" + url)
	opts := probe.Options{
		Binary:           c.cfg.ProbeBinary,
		Quality:          c.cfg.Quality,
		TwitchDisableAds: c.cfg.TwitchDisableAds,
		Timeout:          c.cfg.TimeoutLiveness,
	}
	outcome, err := resilience.Resilient(c.cfg.Retry, breaker, func() (probe.Outcome, error) {
		o, perr := probe.Probe(ctx, url, probe.ModeLiveness, opts)
		if perr != nil {
			return probe.Outcome{}, perr
		}
		if o.Kind != probe.OutcomeLivePresent {
			return o, o.ToError(url)
		}
		return o, nil
	})
	metrics.CircuitBreakerState.WithLabelValues(breaker.Name).Set(metrics.BreakerStateValue(string(breaker.GetStateInfo().State)))
	metrics.ProbeDuration.WithLabelValues("liveness").Observe(outcome.Duration.Seconds())
	elapsedMs := int(outcome.Duration.Milliseconds())

	var status statuscache.Status
	switch {
	case err == nil && outcome.Kind == probe.OutcomeLivePresent:
		status = statuscache.StatusLive
	case outcome.Kind == probe.OutcomeStreamNotFound:
		status = statuscache.StatusOffline
	default:
		status = statuscache.StatusError
	}
	c.cache.Put(url, status, c.cfg.CacheTTL)
	metrics.ChecksTotal.WithLabelValues("liveness", string(status)).Inc()

	if err != nil {
		return LivenessResult{IsLive: false, Err: err, ElapsedMs: elapsedMs}
	}
	return LivenessResult{IsLive: status == statuscache.StatusLive, ElapsedMs: elapsedMs}
}

// MetadataResult is C6's metadata outcome.
type MetadataResult struct {
	JSON      map[string]any
	Err       error
	ElapsedMs int
}

// FetchMetadata implements spec §4.6's three-step metadata sequence. It
// never reads or writes the status cache.
func (c *Checker) FetchMetadata(ctx context.Context, url string) MetadataResult {
	if !c.limiter.Acquire(url, c.cfg.TimeoutMetadata) {
		metrics.RateLimitDenials.WithLabelValues(classify.Classify(url).RateLimitBucket()).Inc()
		return MetadataResult{Err: swerr.New(swerr.KindRateLimited, url, "metadata rate limit denied")}
	}

	breaker := c.breakers.Get("metadata:" + url)
	opts := probe.Options{
		Binary:           c.cfg.ProbeBinary,
		Quality:          c.cfg.Quality,
		TwitchDisableAds: c.cfg.TwitchDisableAds,
		Timeout:          c.cfg.TimeoutMetadata,
	}
	outcome, err := resilience.Resilient(c.cfg.Retry, breaker, func() (probe.Outcome, error) {
		o, perr := probe.Probe(ctx, url, probe.ModeMetadata, opts)
		if perr != nil {
			return probe.Outcome{}, perr
		}
		if o.ExitCode != 0 || len(o.Stdout) == 0 {
			return o, o.ToError(url)
		}
		return o, nil
	})
	metrics.CircuitBreakerState.WithLabelValues(breaker.Name).Set(metrics.BreakerStateValue(string(breaker.GetStateInfo().State)))
	metrics.ProbeDuration.WithLabelValues("metadata").Observe(outcome.Duration.Seconds())
	elapsedMs := int(outcome.Duration.Milliseconds())

	if err != nil {
		metrics.ChecksTotal.WithLabelValues("metadata", "error").Inc()
		return MetadataResult{Err: err, ElapsedMs: elapsedMs}
	}

	var payload map[string]any
	if jsonErr := json.Unmarshal([]byte(outcome.Stdout), &payload); jsonErr != nil {
		metrics.ChecksTotal.WithLabelValues("metadata", "malformed").Inc()
		return MetadataResult{Err: swerr.New(swerr.KindGeneric, url, "malformed metadata JSON"), ElapsedMs: elapsedMs}
	}
	metrics.ChecksTotal.WithLabelValues("metadata", "ok").Inc()
	return MetadataResult{JSON: payload, ElapsedMs: elapsedMs}
}

// ParseMetadata extracts title, viewer count, and category from a raw
// metadata JSON payload per the expected shape in spec §6.
func ParseMetadata(url string, payload map[string]any) (title string, viewers *int, category string) {
	meta, _ := payload["metadata"].(map[string]any)
	if meta == nil {
		return "", nil, "N/A"
	}
	title, _ = meta["title"].(string)

	if v, ok := meta["viewers"]; ok {
		viewers = toIntPtr(v)
	} else if v, ok := meta["viewer_count"]; ok {
		viewers = toIntPtr(v)
	} else if v, ok := meta["online"]; ok {
		viewers = toIntPtr(v)
	}

	platform := classify.Classify(url).Platform
	fields := metadataFields{Title: title}
	if v, ok := meta["game"].(string); ok {
		fields.Game = v
	}
	if v, ok := meta["game_name"].(string); ok {
		fields.GameName = v
	}
	if v, ok := meta["category"].(string); ok {
		fields.Category = v
	}
	if v, ok := meta["program_title"].(string); ok {
		fields.ProgramTitle = v
	}
	category = ExtractCategory(platform, fields)
	return title, viewers, category
}

func toIntPtr(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	}
	return nil
}
