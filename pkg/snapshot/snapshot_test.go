package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateForJobSortsByRelpath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "winners.json", `{"topk":[]}`)
	writeFile(t, dir, "manifest.json", `{"run_id":"r1"}`)
	writeFile(t, dir, "metrics.json", `{}`)

	s, err := CreateForJob("job-1", dir, []string{"winners.json", "metrics.json", "manifest.json", "winners.json"})
	if err != nil {
		t.Fatalf("CreateForJob failed: %v", err)
	}

	files := s.Files()
	if len(files) != 3 {
		t.Fatalf("expected 3 deduplicated files, got %d", len(files))
	}
	want := []string{"manifest.json", "metrics.json", "winners.json"}
	for i, f := range files {
		if f.Relpath() != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], f.Relpath())
		}
		if len(f.SHA256()) != 64 {
			t.Errorf("file %s: expected 64 hex chars, got %q", f.Relpath(), f.SHA256())
		}
		if f.SizeBytes() <= 0 {
			t.Errorf("file %s: expected positive size", f.Relpath())
		}
	}
}

func TestCreateForJobMissingFileFailsClosed(t *testing.T) {
	dir := t.TempDir()
	if _, err := CreateForJob("job-1", dir, []string{"nope.json"}); err == nil {
		t.Fatal("expected error for unreadable evidence file")
	}
}

func TestCreateForJobRequiresJobID(t *testing.T) {
	if _, err := CreateForJob("", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestValidateFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "metrics.json", `{"net_profit": 100}`)

	s, err := CreateForJob("job-1", dir, []string{"metrics.json"})
	if err != nil {
		t.Fatalf("CreateForJob failed: %v", err)
	}

	// Unmodified: valid.
	ok, reason := ValidateFile(s, "metrics.json", path)
	if !ok || reason != ReasonOK {
		t.Fatalf("expected (true, OK), got (%v, %s)", ok, reason)
	}

	// One byte changed: tamper signal.
	if err := os.WriteFile(path, []byte(`{"net_profit": 101}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, reason = ValidateFile(s, "metrics.json", path)
	if ok || reason != ReasonHashMismatch {
		t.Fatalf("expected (false, SHA256 mismatch), got (%v, %s)", ok, reason)
	}

	// Deleted: missing.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok, reason = ValidateFile(s, "metrics.json", path)
	if ok || reason != ReasonFileMissing {
		t.Fatalf("expected (false, File missing), got (%v, %s)", ok, reason)
	}

	// Never captured: not in snapshot.
	ok, reason = ValidateFile(s, "other.json", path)
	if ok || reason != ReasonNotInSnapshot {
		t.Fatalf("expected (false, File not in snapshot), got (%v, %s)", ok, reason)
	}
}

func TestValidateAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", "a")
	writeFile(t, dir, "b.json", "b")

	s, err := CreateForJob("job-1", dir, []string{"a.json", "b.json"})
	if err != nil {
		t.Fatal(err)
	}
	if v := ValidateAll(s, dir); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}

	writeFile(t, dir, "b.json", "tampered")
	v := ValidateAll(s, dir)
	if len(v) != 1 || v[0].Relpath != "b.json" || v[0].Reason != ReasonHashMismatch {
		t.Fatalf("expected one b.json mismatch, got %v", v)
	}
}

func TestSerializationRoundTripPreservesFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "winners.json", `{"topk":[1]}`)

	s, err := CreateForJob("job-7", dir, []string{"winners.json"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Snapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if back.JobID() != "job-7" {
		t.Errorf("job id lost: %s", back.JobID())
	}
	if back.EvidenceRoot() != dir {
		t.Errorf("evidence root lost: %s", back.EvidenceRoot())
	}
	if !back.CapturedAt().Equal(s.CapturedAt()) {
		t.Errorf("captured_at drifted: %v vs %v", back.CapturedAt(), s.CapturedAt())
	}
	orig := s.Files()
	got := back.Files()
	if len(got) != len(orig) {
		t.Fatalf("file count changed: %d vs %d", len(got), len(orig))
	}
	for i := range orig {
		if got[i] != orig[i] {
			t.Errorf("file %d changed: %+v vs %+v", i, got[i], orig[i])
		}
	}
}

func TestUnmarshalRejectsUnknownField(t *testing.T) {
	payload := `{
		"job_id": "j1",
		"captured_at": "2026-01-02T03:04:05Z",
		"evidence_root": "/tmp/x",
		"files": [],
		"sneaky_extra": true
	}`

	var s Snapshot
	err := json.Unmarshal([]byte(payload), &s)
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestUnmarshalRejectsMalformedHash(t *testing.T) {
	payload := `{
		"job_id": "j1",
		"captured_at": "2026-01-02T03:04:05Z",
		"evidence_root": "/tmp/x",
		"files": [
			{"relpath": "a.json", "sha256": "NOT-A-HASH", "size_bytes": 3, "created_at": "2026-01-02T03:04:05Z"}
		]
	}`

	var s Snapshot
	if err := json.Unmarshal([]byte(payload), &s); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation for malformed sha256, got %v", err)
	}
}
