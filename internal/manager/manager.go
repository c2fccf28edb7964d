// Package manager is the thin CRUD orchestrator over the store (spec
// §4.9), grounded on the teacher's catalog.Catalog shape
// (internal/catalog/catalog.go's Load/Replace/Save over a JSON file)
// adapted to front the relational store instead, and on
// internal/dvbdb/sources.go's comment/blank-line-skipping text parser for
// import.
package manager

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/snapetech/streamwatch-core/internal/classify"
	"github.com/snapetech/streamwatch-core/internal/store"
)

// Result is the envelope every Manager operation returns (spec §4.11).
type Result struct {
	Success       bool
	Message       string
	NeedsRefresh  bool
	AffectedCount int
}

// Manager fronts the store with UI-facing bulk operations.
type Manager struct {
	store *store.Store
}

func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Input is one user-provided add request: a raw URL with an optional
// alias override.
type Input struct {
	URL   string
	Alias string
}

// AddMany classifies and upserts each input, defaulting a blank alias to
// the classified handle.
func (m *Manager) AddMany(ctx context.Context, inputs []Input) Result {
	added := 0
	var failures []string
	for _, in := range inputs {
		url := strings.TrimSpace(in.URL)
		if url == "" {
			continue
		}
		result := classify.Classify(url)
		alias := strings.TrimSpace(in.Alias)
		if alias == "" {
			alias = result.Handle
		}
		if err := m.store.Upsert(ctx, url, alias, result.Platform, result.Handle, "N/A"); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		added++
	}
	if len(failures) > 0 {
		return Result{
			Success:       added > 0,
			Message:       fmt.Sprintf("added %d, failed %d: %s", added, len(failures), strings.Join(failures, "; ")),
			NeedsRefresh:  added > 0,
			AffectedCount: added,
		}
	}
	return Result{Success: true, Message: fmt.Sprintf("added %d stream(s)", added), NeedsRefresh: added > 0, AffectedCount: added}
}

// RemoveByIndices soft-deletes the streams at the given 0-based indices
// into the current List() ordering. Indices out of range are skipped.
func (m *Manager) RemoveByIndices(ctx context.Context, indices []int) Result {
	records, err := m.store.Load(ctx, false)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("list streams: %v", err)}
	}

	removed := 0
	for _, i := range indices {
		if i < 0 || i >= len(records) {
			continue
		}
		changed, err := m.store.SoftDelete(ctx, records[i].URL)
		if err != nil {
			return Result{Success: removed > 0, Message: fmt.Sprintf("remove failed after %d: %v", removed, err), NeedsRefresh: removed > 0, AffectedCount: removed}
		}
		if changed {
			removed++
		}
	}
	return Result{Success: true, Message: fmt.Sprintf("removed %d stream(s)", removed), NeedsRefresh: removed > 0, AffectedCount: removed}
}

// List returns every active stream.
func (m *Manager) List(ctx context.Context) ([]store.Record, error) {
	return m.store.Load(ctx, false)
}

// ImportFromText reads a newline-delimited file of `url` or `url alias`
// entries (whitespace-split, second field optional), skipping blank lines
// and lines beginning with '#'.
func (m *Manager) ImportFromText(ctx context.Context, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("open %s: %v", path, err)}
	}
	defer f.Close()

	var inputs []Input
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		in := Input{URL: fields[0]}
		if len(fields) > 1 {
			in.Alias = strings.Join(fields[1:], " ")
		}
		inputs = append(inputs, in)
	}
	if err := scanner.Err(); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("read %s: %v", path, err)}
	}

	return m.AddMany(ctx, inputs)
}

type exportEntry struct {
	URL      string `json:"url"`
	Alias    string `json:"alias"`
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
	Category string `json:"category"`
}

// ExportToJson writes every active stream to path as a JSON array,
// atomically (temp file then rename), mirroring the teacher's
// smoketest-cache save discipline.
func (m *Manager) ExportToJson(ctx context.Context, path string) Result {
	records, err := m.store.Load(ctx, false)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("list streams: %v", err)}
	}

	entries := make([]exportEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, exportEntry{
			URL: r.URL, Alias: r.Alias, Platform: r.Platform, Handle: r.Handle, Category: r.Category,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("marshal export: %v", err)}
	}

	tmp, err := os.CreateTemp(dirOf(path), ".streams-export-*.json.tmp")
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("create temp file: %v", err)}
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		return Result{Success: false, Message: fmt.Sprintf("write export: %v", firstErr(writeErr, closeErr))}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Result{Success: false, Message: fmt.Sprintf("rename export into place: %v", err)}
	}

	return Result{Success: true, Message: fmt.Sprintf("exported %d stream(s)", len(entries)), AffectedCount: len(entries)}
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
