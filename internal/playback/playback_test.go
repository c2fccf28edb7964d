package playback

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sleeperBinary(t *testing.T, seconds int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "player")
	script := "#!/bin/sh\nsleep " + itoaLocal(seconds) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func immediateExitBinary(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "player")
	script := "#!/bin/sh\nexit " + itoaLocal(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func itoaLocal(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func probeBinary(t *testing.T, exitCode int, stdout string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "probe")
	script := "#!/bin/sh\nprintf '" + stdout + "'\nexit " + itoaLocal(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeConfigRecorder struct {
	key, value, dataType string
}

func (f *fakeConfigRecorder) SetConfig(ctx context.Context, key, value, dataType string) error {
	f.key, f.value, f.dataType = key, value, dataType
	return nil
}

func testList() []PlayableRecord {
	return []PlayableRecord{
		{URL: "https://twitch.tv/a", Alias: "A"},
		{URL: "https://twitch.tv/b", Alias: "B"},
		{URL: "https://twitch.tv/c", Alias: "C"},
	}
}

func TestPlayIndex_launchesSuccessfully(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	if err := c.PlayIndex(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePlaying {
		t.Errorf("expected state playing, got %s", c.State())
	}
	rec, _ := c.Current()
	if rec.Alias != "B" {
		t.Errorf("expected current record B, got %s", rec.Alias)
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestPlayIndex_immediateFailureSurfacesError(t *testing.T) {
	bin := immediateExitBinary(t, 1)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond

	err := c.PlayIndex(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error on immediate exit during user-initiated play")
	}
	if c.State() != StateIdle {
		t.Errorf("expected state idle after launch failure, got %s", c.State())
	}
}

func TestHandle_nextAdvancesCircularly(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	c.PlayIndex(context.Background(), 2) // last index
	if err := c.Handle(context.Background(), ActionNext); err != nil {
		t.Fatal(err)
	}
	rec, _ := c.Current()
	if rec.Alias != "A" {
		t.Errorf("expected wraparound to A, got %s", rec.Alias)
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_previousWrapsBackward(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	c.PlayIndex(context.Background(), 0)
	if err := c.Handle(context.Background(), ActionPrevious); err != nil {
		t.Fatal(err)
	}
	rec, _ := c.Current()
	if rec.Alias != "C" {
		t.Errorf("expected wraparound to C, got %s", rec.Alias)
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_donateDoesNotTouchSubprocess(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	c.PlayIndex(context.Background(), 0)
	stateBefore := c.State()
	if err := c.Handle(context.Background(), ActionDonate); err != nil {
		t.Fatal(err)
	}
	if c.State() != stateBefore {
		t.Errorf("expected donate to leave state unchanged, was %s now %s", stateBefore, c.State())
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_mainMenuTerminatesCleanly(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	c.PlayIndex(context.Background(), 0)
	if err := c.Handle(context.Background(), ActionMainMenu); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle after main_menu, got %s", c.State())
	}
}

func TestHooks_runWithoutBlocking(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	hookScript := filepath.Join(dir, "hook.sh")
	script := "#!/bin/sh\ntouch " + marker + "\n"
	if err := os.WriteFile(hookScript, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	bin := immediateExitBinary(t, 0)
	c := New(bin, testList(), "best", Hooks{PreCommand: hookScript})
	c.GraceTimeout = 50 * time.Millisecond
	c.PlayIndex(context.Background(), 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected pre-playback hook to have run")
}

func TestPlayIndex_recordsLastPlayed(t *testing.T) {
	bin := sleeperBinary(t, 2)
	rec := &fakeConfigRecorder{}
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond
	c.Config = rec

	if err := c.PlayIndex(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if rec.key != "last_played" || rec.value != "https://twitch.tv/b" {
		t.Errorf("expected last_played=https://twitch.tv/b recorded, got %s=%s", rec.key, rec.value)
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_changeQualitySkipsReprobeWithoutProbeBinary(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond

	c.PlayIndex(context.Background(), 0)
	if err := c.Handle(context.Background(), ActionChangeQuality); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePlaying {
		t.Errorf("expected playing after quality change, got %s", c.State())
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_changeQualityReprobesAndSucceeds(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond
	c.ProbeBinary = probeBinary(t, 0, `{"metadata":{"title":"x"}}`)

	c.PlayIndex(context.Background(), 0)
	if err := c.Handle(context.Background(), ActionChangeQuality); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePlaying {
		t.Errorf("expected playing after successful quality reprobe, got %s", c.State())
	}
	c.Handle(context.Background(), ActionQuit)
}

func TestHandle_changeQualityReprobeFailureAbortsRelaunch(t *testing.T) {
	bin := sleeperBinary(t, 2)
	c := New(bin, testList(), "best", Hooks{})
	c.GraceTimeout = 50 * time.Millisecond
	c.KillTimeout = 200 * time.Millisecond
	c.ProbeBinary = probeBinary(t, 1, "")

	c.PlayIndex(context.Background(), 0)
	err := c.Handle(context.Background(), ActionChangeQuality)
	if err == nil {
		t.Fatal("expected error when quality reprobe fails")
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle after failed quality reprobe, got %s", c.State())
	}
}
