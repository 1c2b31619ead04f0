// Package store persists governance outputs in an append-only SQLite
// ledger. Every record is stored as canonical JSON next to its SHA-256
// digest, and the digest is re-checked on read so silent corruption
// surfaces as an error instead of a stale verdict.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Quantmill-Labs/vouch/pkg/canonical"
	"github.com/Quantmill-Labs/vouch/pkg/gategraph"
	"github.com/Quantmill-Labs/vouch/pkg/governance"
	"github.com/Quantmill-Labs/vouch/pkg/snapshot"
	"github.com/Quantmill-Labs/vouch/pkg/stamp"

	_ "modernc.org/sqlite"
)

// Record kinds inside the ledger.
const (
	KindReport   = "governance_report"
	KindSummary  = "gate_summary"
	KindSnapshot = "evidence_snapshot"
	KindStamp    = "verdict_stamp"
)

var (
	// ErrNotFound is returned when no record of the requested kind and
	// reference exists.
	ErrNotFound = errors.New("store: record not found")

	// ErrHashMismatch is returned when a stored record's body no longer
	// matches its recorded digest.
	ErrHashMismatch = errors.New("store: record hash mismatch")
)

// Store is an append-only ledger of governance records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing database handle and migrates it.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS governance_records (
        record_id TEXT PRIMARY KEY,
        kind TEXT NOT NULL,
        ref_id TEXT NOT NULL,
        body JSON NOT NULL,
        body_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_records_kind_ref
        ON governance_records (kind, ref_id, created_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveReport appends a governance report keyed by its report id.
func (s *Store) SaveReport(ctx context.Context, r *governance.Report) error {
	return s.append(ctx, KindReport, r.Metadata.ReportID, r)
}

// GetReport loads the most recent report with the given id.
func (s *Store) GetReport(ctx context.Context, reportID string) (*governance.Report, error) {
	body, err := s.latest(ctx, KindReport, reportID)
	if err != nil {
		return nil, err
	}
	var r governance.Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("store: decode report %s: %w", reportID, err)
	}
	return &r, nil
}

// ListReportIDs returns the most recently written report ids, newest first.
func (s *Store) ListReportIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
        SELECT ref_id
        FROM governance_records
        WHERE kind = ?
        ORDER BY rowid DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, KindReport, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SaveSummary appends a gate summary keyed by job id.
func (s *Store) SaveSummary(ctx context.Context, jobID string, sum gategraph.Summary) error {
	return s.append(ctx, KindSummary, jobID, sum)
}

// GetSummary loads the most recent gate summary for a job.
func (s *Store) GetSummary(ctx context.Context, jobID string) (*gategraph.Summary, error) {
	body, err := s.latest(ctx, KindSummary, jobID)
	if err != nil {
		return nil, err
	}
	var sum gategraph.Summary
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, fmt.Errorf("store: decode summary %s: %w", jobID, err)
	}
	return &sum, nil
}

// SaveSnapshot appends an evidence snapshot keyed by its job id.
func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	return s.append(ctx, KindSnapshot, snap.JobID(), snap)
}

// GetSnapshot loads the most recent snapshot for a job. The snapshot's
// own schema validation runs during decode.
func (s *Store) GetSnapshot(ctx context.Context, jobID string) (*snapshot.Snapshot, error) {
	body, err := s.latest(ctx, KindSnapshot, jobID)
	if err != nil {
		return nil, err
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot %s: %w", jobID, err)
	}
	return &snap, nil
}

// SaveStamp appends a verdict stamp keyed by its job id.
func (s *Store) SaveStamp(ctx context.Context, st *stamp.Stamp) error {
	return s.append(ctx, KindStamp, st.JobID(), st)
}

// GetStamp loads the most recent stamp for a job.
func (s *Store) GetStamp(ctx context.Context, jobID string) (*stamp.Stamp, error) {
	body, err := s.latest(ctx, KindStamp, jobID)
	if err != nil {
		return nil, err
	}
	var st stamp.Stamp
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("store: decode stamp %s: %w", jobID, err)
	}
	return &st, nil
}

func (s *Store) append(ctx context.Context, kind, refID string, v any) error {
	if refID == "" {
		return fmt.Errorf("store: %s record needs a reference id", kind)
	}
	body, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s %s: %w", kind, refID, err)
	}
	query := `INSERT INTO governance_records (
		record_id, kind, ref_id, body, body_hash, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		uuid.NewString(), kind, refID, string(body), canonical.HashBytes(body),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: insert %s %s: %w", kind, refID, err)
	}
	return nil
}

func (s *Store) latest(ctx context.Context, kind, refID string) ([]byte, error) {
	query := `
        SELECT body, body_hash
        FROM governance_records
        WHERE kind = ? AND ref_id = ?
        ORDER BY rowid DESC
        LIMIT 1
    `
	row := s.db.QueryRowContext(ctx, query, kind, refID)
	var body, bodyHash string
	if err := row.Scan(&body, &bodyHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, refID)
		}
		return nil, err
	}
	if canonical.HashBytes([]byte(body)) != bodyHash {
		return nil, fmt.Errorf("%w: %s %s", ErrHashMismatch, kind, refID)
	}
	return []byte(body), nil
}
