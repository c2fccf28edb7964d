package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A"); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := s.Get(ctx, "https://twitch.tv/foo")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected record to exist")
	}
	if rec.Alias != "Foo" || rec.Platform != "Twitch" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Status != StatusUnknown {
		t.Errorf("expected unknown status with no checks, got %s", rec.Status)
	}
}

func TestUpsert_isIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A"); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, "https://twitch.tv/foo", "Foo Renamed", "Twitch", "foo", "N/A"); err != nil {
		t.Fatal(err)
	}
	recs, err := s.Load(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record after re-upsert, got %d", len(recs))
	}
	if recs[0].Alias != "Foo Renamed" {
		t.Errorf("expected updated alias, got %s", recs[0].Alias)
	}
}

func TestSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A")

	changed, err := s.SoftDelete(ctx, "https://twitch.tv/foo")
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Error("expected SoftDelete to report a change")
	}

	changed, err = s.SoftDelete(ctx, "https://twitch.tv/foo")
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("expected second SoftDelete to be a no-op")
	}

	_, ok, err := s.Get(ctx, "https://twitch.tv/foo")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected Get to exclude soft-deleted stream")
	}

	all, err := s.Load(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected Load(includeInactive=true) to still see the row, got %d", len(all))
	}
}

func TestRecordCheckAndLiveNow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A")
	s.Upsert(ctx, "https://twitch.tv/bar", "Bar", "Twitch", "bar", "N/A")

	viewers := 100
	if err := s.RecordCheck(ctx, "https://twitch.tv/foo", StatusLive, &viewers, "Great Stream", "Games", nil, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCheck(ctx, "https://twitch.tv/bar", StatusOffline, nil, "", "", nil, ""); err != nil {
		t.Fatal(err)
	}

	live, err := s.LiveNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 || live[0].Alias != "Foo" {
		t.Errorf("expected only Foo live, got %+v", live)
	}
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A")
	s.RecordCheck(ctx, "https://twitch.tv/foo", StatusLive, nil, "", "", nil, "")
	s.RecordCheck(ctx, "https://twitch.tv/foo", StatusOffline, nil, "", "", nil, "")

	events, err := s.History(ctx, "https://twitch.tv/foo", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(events))
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "https://twitch.tv/foo", "FooStream", "Twitch", "foo", "N/A")
	s.Upsert(ctx, "https://youtube.com/bar", "BarChannel", "YouTube", "bar", "N/A")

	results, err := s.Search(ctx, "foo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Alias != "FooStream" {
		t.Errorf("unexpected search results: %+v", results)
	}
}

func TestConfigGetSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SetConfig(ctx, "streamlink.quality", "best", "string"); err != nil {
		t.Fatal(err)
	}
	value, dataType, ok, err := s.GetConfig(ctx, "streamlink.quality")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != "best" || dataType != "string" {
		t.Errorf("unexpected config: %q %q %v", value, dataType, ok)
	}
}

func TestPlatformStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Upsert(ctx, "https://twitch.tv/foo", "Foo", "Twitch", "foo", "N/A")
	s.Upsert(ctx, "https://twitch.tv/bar", "Bar", "Twitch", "bar", "N/A")
	s.RecordCheck(ctx, "https://twitch.tv/foo", StatusLive, nil, "", "", nil, "")

	stats, err := s.PlatformStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Platform != "Twitch" || stats[0].StreamCount != 2 || stats[0].LiveCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMigrateFromLegacy_idempotent(t *testing.T) {
	dir := t.TempDir()
	streamsPath := filepath.Join(dir, "streams.json")
	configPath := filepath.Join(dir, "config.ini")
	os.WriteFile(streamsPath, []byte(`[{"url":"https://twitch.tv/foo","alias":"Foo"}]`), 0o644)
	os.WriteFile(configPath, []byte("[streamlink]\nquality = best\ntwitch_disable_ads = true\n"), 0o644)

	s := newTestStore(t)
	ctx := context.Background()
	backupRoot := filepath.Join(dir, "migration_backup")

	streams, cfg, err := s.MigrateFromLegacy(ctx, streamsPath, configPath, backupRoot, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if streams != 1 || cfg != 2 {
		t.Errorf("expected 1 stream + 2 config entries migrated, got %d/%d", streams, cfg)
	}

	// Re-running must be a no-op because the store already has rows.
	streams2, cfg2, err := s.MigrateFromLegacy(ctx, streamsPath, configPath, backupRoot, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if streams2 != 0 || cfg2 != 0 {
		t.Errorf("expected no-op on second migration, got %d/%d", streams2, cfg2)
	}

	value, dataType, ok, err := s.GetConfig(ctx, "streamlink.quality")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != "best" || dataType != "string" {
		t.Errorf("unexpected migrated config: %q %q %v", value, dataType, ok)
	}

	_, boolType, ok, err := s.GetConfig(ctx, "streamlink.twitch_disable_ads")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || boolType != "boolean" {
		t.Errorf("expected boolean-typed config, got %q %v", boolType, ok)
	}
}
