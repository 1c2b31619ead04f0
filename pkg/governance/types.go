package governance

import "time"

// Decision is a terminal governance verdict for one candidate.
type Decision string

const (
	DecisionKeep   Decision = "KEEP"
	DecisionFreeze Decision = "FREEZE"
	DecisionDrop   Decision = "DROP"
)

// Stage names as they appear in evidence references.
const (
	StageNameSeed      = "seed"
	StageNameCandidate = "candidate"
	StageNameConfirm   = "confirm"
)

// EvidenceRef points a decision at the exact artifacts and metric values it
// was based on, so the verdict is auditable without re-running the
// pipeline. Attached at decision time, immutable afterward.
type EvidenceRef struct {
	RunID         string             `json:"run_id"`
	StageName     string             `json:"stage_name"`
	ArtifactPaths []string           `json:"artifact_paths"`
	KeyMetrics    map[string]float64 `json:"key_metrics,omitempty"`
}

// Item is one candidate's governance verdict. A re-evaluation creates a
// new item; items are never updated in place.
type Item struct {
	CandidateID string        `json:"candidate_id"`
	Decision    Decision      `json:"decision"`
	Reasons     []string      `json:"reasons"`
	ReasonCodes []string      `json:"reason_codes,omitempty"`
	Evidence    []EvidenceRef `json:"evidence"`
	CreatedAt   time.Time     `json:"created_at"`
	GitSHA      string        `json:"git_sha,omitempty"`
}

// Metadata describes one evaluation run.
type Metadata struct {
	ReportID      string            `json:"report_id"`
	GeneratedAt   time.Time         `json:"generated_at"`
	PolicyVersion string            `json:"policy_version"`
	Counts        map[Decision]int  `json:"counts"`
	StageRunIDs   map[string]string `json:"stage_run_ids"`
}

// Report is the complete output of one governance evaluation.
type Report struct {
	Items    []Item   `json:"items"`
	Metadata Metadata `json:"metadata"`
}
