// Package gategraph aggregates independent pass/fail checks ("gates") into
// a causal dependency graph. A failing gate with no failing ancestor is the
// root cause (primary failure); a failing gate downstream of one is
// collateral damage (propagated failure). A cyclic dependency configuration
// never hangs or crashes the evaluator: it surfaces as an explicit
// synthetic REJECT gate describing the cycle.
package gategraph

// Status is the outcome of one gate check.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusWarn    Status = "WARN"
	StatusReject  Status = "REJECT"
	StatusUnknown Status = "UNKNOWN"
)

// CycleGateID is the gate id of the synthetic gate appended when the
// dependency graph contains a cycle.
const CycleGateID = "gate_dependency_cycle"

// Item is one gate's result plus the causal flags derived by the
// evaluator. IsPrimaryFail and IsPropagatedFail are computed fields: any
// caller-set values are overwritten during evaluation, and the two are
// never both true.
type Item struct {
	GateID           string         `json:"gate_id"`
	GateName         string         `json:"gate_name"`
	Status           Status         `json:"status"`
	Message          string         `json:"message,omitempty"`
	ReasonCodes      []string       `json:"reason_codes,omitempty"`
	DependsOn        []string       `json:"depends_on,omitempty"`
	IsPrimaryFail    bool           `json:"is_primary_fail"`
	IsPropagatedFail bool           `json:"is_propagated_fail"`
	Details          map[string]any `json:"details,omitempty"`
}

// Summary is the aggregated verdict over a gate suite. Immutable once
// constructed: build a new one to re-evaluate.
type Summary struct {
	Gates         []Item         `json:"gates"`
	OverallStatus Status         `json:"overall_status"`
	Counts        map[Status]int `json:"counts"`
	TotalGates    int            `json:"total_gates"`
	Source        string         `json:"source,omitempty"`
	Evaluator     string         `json:"evaluator,omitempty"`
}
