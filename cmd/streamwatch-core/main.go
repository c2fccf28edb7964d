// Command streamwatch-core is a thin composition root: it wires the
// config, store, checker, pipeline, and manager packages together and
// exposes them as flag-driven subcommands. The UI/CLI/player experience
// itself is out of scope (spec's non-goals exclude a bundled daemon or
// server loop); this binary runs one operation per invocation and exits,
// grounded on the teacher's cmd/plex-tuner/main.go flag-parsing and
// component-wiring shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/snapetech/streamwatch-core/internal/checker"
	"github.com/snapetech/streamwatch-core/internal/classify"
	"github.com/snapetech/streamwatch-core/internal/config"
	"github.com/snapetech/streamwatch-core/internal/manager"
	"github.com/snapetech/streamwatch-core/internal/pipeline"
	"github.com/snapetech/streamwatch-core/internal/ratelimit"
	"github.com/snapetech/streamwatch-core/internal/resilience"
	"github.com/snapetech/streamwatch-core/internal/statuscache"
	"github.com/snapetech/streamwatch-core/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	if _, err := exec.LookPath(cfg.ProbeBinary); err != nil {
		log.Fatalf("probe binary %q not found: %v", cfg.ProbeBinary, err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if _, _, err := st.MigrateFromLegacy(ctx, cfg.LegacyStreamsFile, cfg.LegacyConfigFile,
		filepath.Join(cfg.DataDir, "migration_backup"), time.Now()); err != nil {
		log.Printf("legacy migration: %v", err)
	}

	mgr := manager.New(st)

	switch os.Args[1] {
	case "list":
		runList(ctx, mgr)
	case "add":
		runAdd(ctx, mgr, os.Args[2:])
	case "remove":
		runRemove(ctx, mgr, os.Args[2:])
	case "import":
		runImport(ctx, mgr, os.Args[2:])
	case "export":
		runExport(ctx, mgr, os.Args[2:])
	case "check":
		runCheck(ctx, mgr, st, cfg)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: streamwatch-core <list|add|remove|import|export|check> [flags]")
}

func runList(ctx context.Context, mgr *manager.Manager) {
	records, err := mgr.List(ctx)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	for _, r := range records {
		fmt.Printf("%s\t%s\t%s\t%s\n", r.Alias, r.Platform, r.Status, r.URL)
	}
}

func runAdd(ctx context.Context, mgr *manager.Manager, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	alias := fs.String("alias", "", "alias override (default: classified handle)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		log.Fatal("usage: streamwatch-core add [-alias NAME] <url>")
	}
	res := mgr.AddMany(ctx, []manager.Input{{URL: fs.Arg(0), Alias: *alias}})
	fmt.Println(res.Message)
	if !res.Success {
		os.Exit(1)
	}
}

func runRemove(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) == 0 {
		log.Fatal("usage: streamwatch-core remove <index> [index...]")
	}
	var indices []int
	for _, a := range args {
		var i int
		if _, err := fmt.Sscanf(a, "%d", &i); err != nil {
			log.Fatalf("invalid index %q: %v", a, err)
		}
		indices = append(indices, i)
	}
	res := mgr.RemoveByIndices(ctx, indices)
	fmt.Println(res.Message)
}

func runImport(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) != 1 {
		log.Fatal("usage: streamwatch-core import <path>")
	}
	res := mgr.ImportFromText(ctx, args[0])
	fmt.Println(res.Message)
	if !res.Success {
		os.Exit(1)
	}
}

func runExport(ctx context.Context, mgr *manager.Manager, args []string) {
	if len(args) != 1 {
		log.Fatal("usage: streamwatch-core export <path>")
	}
	res := mgr.ExportToJson(ctx, args[0])
	fmt.Println(res.Message)
	if !res.Success {
		os.Exit(1)
	}
}

func runCheck(ctx context.Context, mgr *manager.Manager, st *store.Store, cfg *config.Config) {
	records, err := mgr.List(ctx)
	if err != nil {
		log.Fatalf("list streams: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("no streams configured")
		return
	}

	platformBuckets := map[string]ratelimit.BucketConfig{
		"twitch":  {Rate: cfg.RateLimitPlatform["twitch"].Rate, Capacity: cfg.RateLimitPlatform["twitch"].Capacity},
		"youtube": {Rate: cfg.RateLimitPlatform["youtube"].Rate, Capacity: cfg.RateLimitPlatform["youtube"].Capacity},
		"kick":    {Rate: cfg.RateLimitPlatform["kick"].Rate, Capacity: cfg.RateLimitPlatform["kick"].Capacity},
		"default": {Rate: cfg.RateLimitPlatform["default"].Rate, Capacity: cfg.RateLimitPlatform["default"].Capacity},
	}
	limiter := ratelimit.New(cfg.RateLimitEnabled, ratelimit.BucketConfig{Rate: cfg.RateLimitGlobalRate, Capacity: cfg.RateLimitGlobalBurst}, platformBuckets)

	c := checker.New(checker.Config{
		ProbeBinary:      cfg.ProbeBinary,
		Quality:          cfg.StreamlinkQuality,
		TwitchDisableAds: cfg.TwitchDisableAds,
		TimeoutLiveness:  cfg.TimeoutLiveness,
		TimeoutMetadata:  cfg.TimeoutMetadata,
		CacheEnabled:     cfg.CacheEnabled,
		CacheTTL:         cfg.CacheTTL,
		Retry: resilience.RetryConfig{
			MaxAttempts:     cfg.RetryMaxAttempts,
			BaseDelay:       cfg.RetryBaseDelay,
			MaxDelay:        cfg.RetryMaxDelay,
			ExponentialBase: cfg.RetryExponentialBase,
			Jitter:          cfg.RetryJitter,
		},
	}, statuscache.New(), limiter, resilience.NewRegistry(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitFailureThreshold,
		RecoveryTimeout:  cfg.CircuitRecoveryTimeout,
		SuccessThreshold: cfg.CircuitSuccessThreshold,
	}))

	inputs := make([]pipeline.Record, 0, len(records))
	for _, r := range records {
		cl := classify.Classify(r.URL)
		inputs = append(inputs, pipeline.Record{URL: r.URL, Alias: r.Alias, Platform: cl.Platform, Handle: cl.Handle})
	}

	enriched := pipeline.CheckAll(ctx, c, inputs, pipeline.Config{
		MaxWorkersLiveness: cfg.MaxWorkersLiveness,
		MaxWorkersMetadata: cfg.MaxWorkersMetadata,
		TimeoutLiveness:    cfg.TimeoutLiveness,
		TimeoutMetadata:    cfg.TimeoutMetadata,
	})

	for _, e := range enriched {
		viewers := "?"
		if e.ViewerCount != nil {
			viewers = fmt.Sprintf("%d", *e.ViewerCount)
		}
		fmt.Printf("%s\t%s\tviewers=%s\tcategory=%s\n", e.Record.Alias, e.Status, viewers, e.Category)

		errMsg := ""
		if e.Err != nil {
			errMsg = e.Err.Error()
		}
		if err := st.RecordCheck(ctx, e.Record.URL, store.Status(e.Status), e.ViewerCount, e.Title, e.Category, e.ResponseTimeMs, errMsg); err != nil {
			log.Printf("record check for %s: %v", e.Record.URL, err)
		}
	}
}
