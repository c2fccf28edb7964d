package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// legacyStream is one entry of the pre-database streams.json file.
type legacyStream struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// MigrateFromLegacy performs the one-time JSON/INI-to-store migration
// (spec §4.8). It is a no-op if the store already has stream rows
// (idempotent by construction: re-running never duplicates data). When
// either legacy file exists, each legacy file that exists is backed up to
// a timestamped directory before any row is written, mirroring the teacher's
// atomic-temp-file-then-rename discipline for on-disk writes
// (internal/indexer/smoketest_cache.go::Save) applied here to the backup
// copy instead of a rename.
func (s *Store) MigrateFromLegacy(ctx context.Context, streamsPath, configPath, backupRoot string, now time.Time) (migratedStreams, migratedConfig int, err error) {
	existing, err := s.Load(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("store: migration precheck: %w", err)
	}
	if len(existing) > 0 {
		return 0, 0, nil
	}

	haveStreams := fileExists(streamsPath)
	haveConfig := fileExists(configPath)
	if !haveStreams && !haveConfig {
		return 0, 0, nil
	}

	backupDir := filepath.Join(backupRoot, "backup_"+now.Format("20060102_150405"))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("store: create migration backup dir: %w", err)
	}
	if haveStreams {
		if err := copyFile(streamsPath, filepath.Join(backupDir, "streams.json")); err != nil {
			return 0, 0, fmt.Errorf("store: backup streams file: %w", err)
		}
	}
	if haveConfig {
		if err := copyFile(configPath, filepath.Join(backupDir, "config.ini")); err != nil {
			return 0, 0, fmt.Errorf("store: backup config file: %w", err)
		}
	}

	if haveStreams {
		n, err := s.migrateStreamsFile(ctx, streamsPath)
		if err != nil {
			return 0, 0, err
		}
		migratedStreams = n
	}
	if haveConfig {
		n, err := s.migrateConfigFile(ctx, configPath)
		if err != nil {
			return migratedStreams, 0, err
		}
		migratedConfig = n
	}
	return migratedStreams, migratedConfig, nil
}

func (s *Store) migrateStreamsFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("store: read legacy streams file: %w", err)
	}

	var entries []legacyStream
	if err := json.Unmarshal(data, &entries); err != nil {
		// Older format: a bare {url: alias} map.
		var asMap map[string]string
		if mapErr := json.Unmarshal(data, &asMap); mapErr != nil {
			return 0, fmt.Errorf("store: parse legacy streams file: %w", err)
		}
		for url, alias := range asMap {
			entries = append(entries, legacyStream{URL: url, Alias: alias})
		}
	}

	count := 0
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		if err := s.ClassifyAndUpsert(ctx, e.URL, e.Alias); err != nil {
			return count, fmt.Errorf("store: migrate stream %s: %w", e.URL, err)
		}
		count++
	}
	return count, nil
}

// migrateConfigFile parses a simple `[section]\nkey = value` INI file,
// storing each entry under `section_lower.key`, converting its value to
// the best-fit type in bool -> int -> float -> string order.
func (s *Store) migrateConfigFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("store: read legacy config file: %w", err)
	}

	section := ""
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if section != "" {
			key = section + "." + key
		}

		value, dataType := bestFitType(value)
		if err := s.SetConfig(ctx, key, value, dataType); err != nil {
			return count, fmt.Errorf("store: migrate config key %s: %w", key, err)
		}
		count++
	}
	return count, nil
}

func bestFitType(raw string) (value, dataType string) {
	lower := strings.ToLower(raw)
	if lower == "true" || lower == "false" {
		return lower, "boolean"
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw, "integer"
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw, "float"
	}
	return raw, "string"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
