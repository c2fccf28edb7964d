// Package pipeline runs the two-phase batch check (spec §4.7): fan out
// liveness checks with bounded width, then fan out metadata checks over
// the URLs found live, and assemble enriched records. Grounded on the
// teacher's worker-pool idiom (bounded goroutine fan-out over a submitted
// job slice with per-task timeout), generalized to the errgroup +
// semaphore.Weighted shape used elsewhere in the pack.
package pipeline

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/snapetech/streamwatch-core/internal/checker"
	"github.com/snapetech/streamwatch-core/internal/metrics"
)

// Record is one input item: a stream to check.
type Record struct {
	URL      string
	Alias    string
	Platform string
	Handle   string
	Category string
}

// Status is the enriched outcome status.
type Status string

const (
	StatusLive    Status = "live"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// Enriched is one output item: a record plus its check outcome.
type Enriched struct {
	Record         Record
	Status         Status
	ViewerCount    *int
	Title          string
	Category       string
	ResponseTimeMs *int
	Err            error
}

// Config bounds pool widths and per-task timeouts.
type Config struct {
	MaxWorkersLiveness int
	MaxWorkersMetadata int
	TimeoutLiveness    time.Duration
	TimeoutMetadata    time.Duration
}

// CheckAll runs phase 1 (liveness fan-out) then phase 2 (metadata fan-out
// over URLs found live), returning an enriched record for every URL found
// live in phase 1. Neither phase aborts the batch on an individual task's
// failure or timeout.
func CheckAll(ctx context.Context, c *checker.Checker, records []Record, cfg Config) []Enriched {
	liveIdx := phaseLiveness(ctx, c, records, cfg)
	if len(liveIdx) == 0 {
		return nil
	}
	return phaseMetadata(ctx, c, records, liveIdx, cfg)
}

// phaseLiveness submits one task per record and returns the indices of
// records found live. Non-live and failed/lost tasks are logged and
// dropped, never abort the batch.
func phaseLiveness(ctx context.Context, c *checker.Checker, records []Record, cfg Config) []int {
	width := cfg.MaxWorkersLiveness
	if width <= 0 || width > len(records) {
		width = len(records)
	}
	if width <= 0 {
		return nil
	}
	sem := semaphore.NewWeighted(int64(width))
	g, gctx := errgroup.WithContext(ctx)

	live := make([]bool, len(records))
	bound := cfg.TimeoutLiveness + 5*time.Second
	var inFlight int64

	for i, rec := range records {
		i, rec := i, rec
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			n := atomic.AddInt64(&inFlight, 1)
			metrics.WorkerPoolInFlight.WithLabelValues("liveness").Set(float64(n))
			defer func() {
				metrics.WorkerPoolInFlight.WithLabelValues("liveness").Set(float64(atomic.AddInt64(&inFlight, -1)))
			}()
			taskCtx, cancel := context.WithTimeout(gctx, bound)
			defer cancel()
			res := c.CheckLiveness(taskCtx, rec.URL)
			if res.Err != nil {
				log.Printf("pipeline: liveness check failed for %s: %v", rec.URL, res.Err)
				return nil
			}
			live[i] = res.IsLive
			return nil
		})
	}
	_ = g.Wait()

	var out []int
	for i, ok := range live {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// phaseMetadata fans out over the URLs found live in phase 1. A failure or
// timeout for any individual URL degrades that record to defaults rather
// than dropping it: every URL found live in phase 1 appears in the result.
func phaseMetadata(ctx context.Context, c *checker.Checker, records []Record, liveIdx []int, cfg Config) []Enriched {
	width := cfg.MaxWorkersMetadata
	if width <= 0 || width > len(liveIdx) {
		width = len(liveIdx)
	}
	if width <= 0 {
		width = 1
	}
	sem := semaphore.NewWeighted(int64(width))
	g, gctx := errgroup.WithContext(ctx)

	out := make([]Enriched, len(liveIdx))
	bound := cfg.TimeoutMetadata + 5*time.Second
	var inFlight int64

	for pos, idx := range liveIdx {
		pos, idx := pos, idx
		rec := records[idx]
		out[pos] = Enriched{Record: rec, Status: StatusLive, Category: "N/A"}

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			n := atomic.AddInt64(&inFlight, 1)
			metrics.WorkerPoolInFlight.WithLabelValues("metadata").Set(float64(n))
			defer func() {
				metrics.WorkerPoolInFlight.WithLabelValues("metadata").Set(float64(atomic.AddInt64(&inFlight, -1)))
			}()
			taskCtx, cancel := context.WithTimeout(gctx, bound)
			defer cancel()

			res := c.FetchMetadata(taskCtx, rec.URL)
			elapsed := res.ElapsedMs
			if res.Err != nil {
				log.Printf("pipeline: metadata fetch failed for %s: %v", rec.URL, res.Err)
				out[pos].ResponseTimeMs = &elapsed
				out[pos].Err = res.Err
				return nil
			}
			title, viewers, category := checker.ParseMetadata(rec.URL, res.JSON)
			out[pos] = Enriched{
				Record:         rec,
				Status:         StatusLive,
				ViewerCount:    viewers,
				Title:          title,
				Category:       category,
				ResponseTimeMs: &elapsed,
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
