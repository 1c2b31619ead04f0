// Package snapshot implements the evidence snapshot lock: an immutable,
// content-hashed manifest of every evidence file a verdict relied on.
//
// A Snapshot is constructed once, sorted by relpath for determinism, and
// carries no mutator methods; its fields are unexported so later code
// cannot alter the captured baseline. Reloading a persisted snapshot goes
// through closed-schema validation and rejects unknown fields instead of
// silently dropping them.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// ValidateFile reason strings. These are part of the audit contract and
// must not change between releases.
const (
	ReasonOK            = "OK"
	ReasonNotInSnapshot = "File not in snapshot"
	ReasonFileMissing   = "File missing"
	ReasonHashMismatch  = "SHA256 mismatch"
)

// ErrSchemaViolation is returned when a persisted snapshot fails
// closed-schema validation on reload.
var ErrSchemaViolation = errors.New("snapshot: schema violation")

// hashParallelism bounds concurrent file hashing. Hashing order is never
// observable: the file list is sorted by relpath regardless.
const hashParallelism = 8

// File is one hashed evidence file inside a snapshot.
type File struct {
	relpath   string
	sha256Hex string
	sizeBytes int64
	createdAt time.Time
}

// Relpath returns the file's path relative to the evidence root.
func (f File) Relpath() string { return f.relpath }

// SHA256 returns the lowercase hex digest captured over the full file
// content.
func (f File) SHA256() string { return f.sha256Hex }

// SizeBytes returns the file size at capture time.
func (f File) SizeBytes() int64 { return f.sizeBytes }

// CreatedAt returns the capture timestamp.
func (f File) CreatedAt() time.Time { return f.createdAt }

// Snapshot is the frozen evidence manifest for one job evaluation.
type Snapshot struct {
	jobID        string
	capturedAt   time.Time
	evidenceRoot string
	files        []File
	index        map[string]int // relpath -> files index
}

// JobID returns the job this snapshot was captured for.
func (s *Snapshot) JobID() string { return s.jobID }

// CapturedAt returns the capture timestamp.
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// EvidenceRoot returns the root directory the relpaths are relative to.
func (s *Snapshot) EvidenceRoot() string { return s.evidenceRoot }

// Files returns a copy of the file list, sorted by relpath.
func (s *Snapshot) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Lookup returns the captured file entry for a relpath.
func (s *Snapshot) Lookup(relpath string) (File, bool) {
	i, ok := s.index[relpath]
	if !ok {
		return File{}, false
	}
	return s.files[i], true
}

// CreateForJob hashes each listed file under evidenceRoot and freezes the
// result into a Snapshot. Relpaths are deduplicated and sorted; hashing
// runs in parallel. Any unreadable file fails the whole capture: a
// snapshot that silently skipped evidence would be worthless as a
// tamper-detection baseline.
func CreateForJob(jobID, evidenceRoot string, relpaths []string) (*Snapshot, error) {
	if jobID == "" {
		return nil, errors.New("snapshot: job id is required")
	}

	seen := make(map[string]struct{}, len(relpaths))
	paths := make([]string, 0, len(relpaths))
	for _, p := range relpaths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	now := time.Now().UTC()
	files := make([]File, len(paths))

	var g errgroup.Group
	g.SetLimit(hashParallelism)
	for i, rel := range paths {
		g.Go(func() error {
			sum, size, err := hashFile(filepath.Join(evidenceRoot, rel))
			if err != nil {
				return fmt.Errorf("snapshot: hash %s: %w", rel, err)
			}
			files[i] = File{relpath: rel, sha256Hex: sum, sizeBytes: size, createdAt: now}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return newSnapshot(jobID, now, evidenceRoot, files), nil
}

// ValidateFile checks one file against the snapshot baseline. It is
// side-effect free and callable repeatedly; the snapshot is never mutated.
//
// currentPath is the on-disk location to check, which may differ from the
// original capture location (e.g. a restored archive).
func ValidateFile(s *Snapshot, relpath, currentPath string) (bool, string) {
	captured, ok := s.Lookup(relpath)
	if !ok {
		return false, ReasonNotInSnapshot
	}

	sum, _, err := hashFile(currentPath)
	if err != nil {
		// Unreadable counts the same as absent: the evidence cannot be
		// produced.
		return false, ReasonFileMissing
	}
	if sum != captured.sha256Hex {
		return false, ReasonHashMismatch
	}
	return true, ReasonOK
}

// Violation records one failed file validation.
type Violation struct {
	Relpath string `json:"relpath"`
	Reason  string `json:"reason"`
}

// ValidateAll re-validates every file in the snapshot against root and
// returns the violations, if any.
func ValidateAll(s *Snapshot, root string) []Violation {
	var out []Violation
	for _, f := range s.files {
		if ok, reason := ValidateFile(s, f.relpath, filepath.Join(root, f.relpath)); !ok {
			out = append(out, Violation{Relpath: f.relpath, Reason: reason})
		}
	}
	return out
}

func newSnapshot(jobID string, capturedAt time.Time, root string, files []File) *Snapshot {
	idx := make(map[string]int, len(files))
	for i, f := range files {
		idx[f.relpath] = i
	}
	return &Snapshot{
		jobID:        jobID,
		capturedAt:   capturedAt,
		evidenceRoot: root,
		files:        files,
		index:        idx,
	}
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// --- serialization -------------------------------------------------------

type fileDTO struct {
	Relpath   string    `json:"relpath"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshotDTO struct {
	JobID        string    `json:"job_id"`
	CapturedAt   time.Time `json:"captured_at"`
	EvidenceRoot string    `json:"evidence_root"`
	Files        []fileDTO `json:"files"`
}

// MarshalJSON serializes the snapshot in its persisted wire form.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	dto := snapshotDTO{
		JobID:        s.jobID,
		CapturedAt:   s.capturedAt,
		EvidenceRoot: s.evidenceRoot,
		Files:        make([]fileDTO, len(s.files)),
	}
	for i, f := range s.files {
		dto.Files[i] = fileDTO{
			Relpath:   f.relpath,
			SHA256:    f.sha256Hex,
			SizeBytes: f.sizeBytes,
			CreatedAt: f.createdAt,
		}
	}
	return json.Marshal(dto)
}

// UnmarshalJSON reloads a persisted snapshot. The payload is validated
// against the snapshot schema contract first; unknown fields and malformed
// hashes are rejected (ErrSchemaViolation), never ignored.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	if err := validateAgainstSchema(snapshotSchema, data); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var dto snapshotDTO
	if err := dec.Decode(&dto); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	files := make([]File, len(dto.Files))
	for i, f := range dto.Files {
		files[i] = File{
			relpath:   f.Relpath,
			sha256Hex: f.SHA256,
			sizeBytes: f.SizeBytes,
			createdAt: f.CreatedAt,
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].relpath < files[j].relpath })

	*s = *newSnapshot(dto.JobID, dto.CapturedAt, dto.EvidenceRoot, files)
	return nil
}

// Load reads and validates a persisted snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
