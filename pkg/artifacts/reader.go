// Package artifacts reads the per-stage artifact directories produced by
// the pipeline scheduler. Reads are deliberately forgiving: a missing or
// malformed file degrades to a zero value and a WARN log, never an abort.
// A missing stage-2 winners list is itself evidence for the governance
// rules, not an error.
package artifacts

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known artifact file names inside a stage directory.
const (
	ManifestFile       = "manifest.json"
	MetricsFile        = "metrics.json"
	WinnersFile        = "winners.json"
	ConfigSnapshotFile = "config_snapshot.json"
)

// Manifest identifies one stage run.
type Manifest struct {
	RunID  string `json:"run_id"`
	Season string `json:"season"`
	GitSHA string `json:"git_sha"`
}

// Winners is a stage's winner list. Items stay as raw JSON objects; the
// candidate package normalizes them.
type Winners struct {
	TopK          []map[string]any `json:"topk"`
	SchemaVersion string           `json:"schema_version,omitempty"`
}

// IsV2 reports whether the winner list declares the v2 schema, either at
// the list level or on its first item.
func (w Winners) IsV2() bool {
	if w.SchemaVersion == "2" || w.SchemaVersion == "v2" {
		return true
	}
	if len(w.TopK) > 0 {
		return ItemIsV2(w.TopK[0])
	}
	return false
}

// ItemIsV2 reports whether a single winner item declares the v2 schema.
func ItemIsV2(item map[string]any) bool {
	switch v := item["schema_version"].(type) {
	case string:
		return v == "2" || v == "v2"
	case float64:
		return v >= 2
	}
	return false
}

// Stage is one stage directory's loaded artifacts.
type Stage struct {
	Dir            string
	Manifest       Manifest
	Metrics        map[string]any
	Winners        Winners
	ConfigSnapshot map[string]any
}

// LoadStage reads a stage directory. It never fails: absent or malformed
// files leave their zero values in place.
func LoadStage(dir string, log *slog.Logger) Stage {
	if log == nil {
		log = slog.Default()
	}
	s := Stage{Dir: dir}
	readJSON(filepath.Join(dir, ManifestFile), &s.Manifest, log)
	readJSON(filepath.Join(dir, MetricsFile), &s.Metrics, log)
	readJSON(filepath.Join(dir, WinnersFile), &s.Winners, log)
	readJSON(filepath.Join(dir, ConfigSnapshotFile), &s.ConfigSnapshot, log)
	return s
}

func readJSON(path string, v any, log *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("stage artifact unreadable, proceeding with defaults",
			"path", path, "err", err)
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn("stage artifact malformed, proceeding with defaults",
			"path", path, "err", err)
	}
}
