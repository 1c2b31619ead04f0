// Package governance implements the deterministic rule engine that decides
// whether each researched candidate is KEPT, FROZEN for review, or DROPPED.
//
// Rules run per candidate as a short-circuiting state machine:
//
//	Pending → R1 (evidence completeness) → DROP, terminal
//	        → R2 (confirm stability)     → DROP, terminal
//	        → R3 (plateau density)       → FREEZE
//	        → policy freeze hooks        → FREEZE
//	        → KEEP
//
// Every verdict carries evidence references listing the exact artifacts and
// metric values consulted, which is what makes it auditable months later
// without re-running the pipeline.
package governance

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Quantmill-Labs/vouch/pkg/artifacts"
	"github.com/Quantmill-Labs/vouch/pkg/candidate"
	"github.com/Quantmill-Labs/vouch/pkg/policy"
	"github.com/Quantmill-Labs/vouch/pkg/reasons"
)

// Engine evaluates governance rules over three stage directories. It holds
// no mutable state across calls: evaluations of different jobs may run
// concurrently on the same Engine.
type Engine struct {
	profile *policy.Profile
	hooks   *policy.HookEvaluator
	log     *slog.Logger
	clock   func() time.Time
}

// NewEngine builds an engine for the given policy profile (nil means the
// built-in defaults). Freeze hooks are compiled here, once.
func NewEngine(profile *policy.Profile) (*Engine, error) {
	if profile == nil {
		profile = policy.Default()
	}
	hooks, err := policy.NewHookEvaluator(profile.FreezeHooks)
	if err != nil {
		return nil, err
	}
	return &Engine{
		profile: profile,
		hooks:   hooks,
		log:     slog.Default(),
		clock:   time.Now,
	}, nil
}

// WithLogger overrides the diagnostic logger.
func (e *Engine) WithLogger(log *slog.Logger) *Engine {
	e.log = log
	return e
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// stagedCandidate carries one stage-1 winner through the rule pipeline.
type stagedCandidate struct {
	raw     map[string]any
	norm    candidate.Normalized
	id      string
	isV2    bool
	key     string
	hasKey  bool
	keyKind string // "candidate_id" or "param_id"
}

// Evaluate runs the three-stage governance evaluation and produces a
// complete report. Missing or malformed stage artifacts never abort the
// run: they degrade to empty values, and in R1 the absence of stage-2
// evidence is itself decisive.
func (e *Engine) Evaluate(stage0Dir, stage1Dir, stage2Dir string) (*Report, error) {
	now := e.clock().UTC()

	stage0 := artifacts.LoadStage(stage0Dir, e.log)
	stage1 := artifacts.LoadStage(stage1Dir, e.log)
	stage2 := artifacts.LoadStage(stage2Dir, e.log)

	stage1V2 := stage1.Winners.IsV2()
	stage2V2 := stage2.Winners.IsV2()
	bothV2 := stage1V2 && stage2V2

	cands, err := e.normalizeStage1(stage1, stage1V2, bothV2)
	if err != nil {
		return nil, err
	}

	confirmKeys := confirmKeySet(stage2, bothV2)
	density := strategyDensity(cands)

	items := make([]Item, 0, len(cands))
	counts := map[Decision]int{DecisionKeep: 0, DecisionFreeze: 0, DecisionDrop: 0}

	for _, c := range cands {
		item := e.evaluateCandidate(c, stage1, stage2, confirmKeys, density, bothV2, now)
		counts[item.Decision]++
		items = append(items, item)
	}

	report := &Report{
		Items: items,
		Metadata: Metadata{
			ReportID:      uuid.New().String(),
			GeneratedAt:   now,
			PolicyVersion: e.profile.PolicyVersion,
			Counts:        counts,
			StageRunIDs: map[string]string{
				"stage0": stage0.Manifest.RunID,
				"stage1": stage1.Manifest.RunID,
				"stage2": stage2.Manifest.RunID,
			},
		},
	}

	e.log.Info("governance evaluation complete",
		"report_id", report.Metadata.ReportID,
		"candidates", len(items),
		"keep", counts[DecisionKeep],
		"freeze", counts[DecisionFreeze],
		"drop", counts[DecisionDrop])

	return report, nil
}

func (e *Engine) normalizeStage1(stage1 artifacts.Stage, stage1V2, bothV2 bool) ([]stagedCandidate, error) {
	cands := make([]stagedCandidate, 0, len(stage1.Winners.TopK))
	for _, raw := range stage1.Winners.TopK {
		isV2 := stage1V2 || artifacts.ItemIsV2(raw)

		shape := candidate.ShapeLegacy
		if isV2 {
			shape = candidate.ShapeV2
		}
		norm := candidate.Normalize(raw, stage1.ConfigSnapshot, shape)

		id, err := candidate.ID(norm.StrategyID, norm.Params)
		if err != nil {
			return nil, fmt.Errorf("governance: candidate id: %w", err)
		}

		derived := ""
		if isV2 && norm.StrategyID != "" {
			derived = id
		}
		keyKind := "param_id"
		if bothV2 {
			keyKind = "candidate_id"
		}
		key, hasKey := matchKey(raw, bothV2, derived)

		cands = append(cands, stagedCandidate{
			raw:     raw,
			norm:    norm,
			id:      id,
			isV2:    isV2,
			key:     key,
			hasKey:  hasKey,
			keyKind: keyKind,
		})
	}
	return cands, nil
}

func (e *Engine) evaluateCandidate(
	c stagedCandidate,
	stage1, stage2 artifacts.Stage,
	confirmKeys map[string]map[string]any,
	density map[string]int,
	bothV2 bool,
	now time.Time,
) Item {
	item := Item{
		CandidateID: c.id,
		Reasons:     []string{},
		CreatedAt:   now,
		GitSHA:      stage1.Manifest.GitSHA,
		Evidence: []EvidenceRef{
			stageEvidence(stage1, StageNameCandidate, c.raw),
		},
	}

	// R1: evidence completeness.
	if !c.hasKey {
		item.Decision = DecisionDrop
		if bothV2 {
			item.Reasons = append(item.Reasons, "R1: missing_candidate_id")
			item.ReasonCodes = append(item.ReasonCodes, reasons.CodeR1MissingCandidateID)
		} else {
			item.Reasons = append(item.Reasons, "R1: missing_param_id")
			item.ReasonCodes = append(item.ReasonCodes, reasons.CodeR1MissingParamID)
		}
		return item
	}

	confirmRaw, matched := confirmKeys[c.key]
	if !matched {
		item.Decision = DecisionDrop
		item.Reasons = append(item.Reasons, "R1: unverified")
		item.ReasonCodes = append(item.ReasonCodes, reasons.CodeR1Unverified)
		return item
	}
	item.Evidence = append(item.Evidence, stageEvidence(stage2, StageNameConfirm, confirmRaw))

	// R2: confirm stability. No opinion when either value is unobtainable.
	s1 := keyMetric(c.raw)
	s2 := keyMetric(confirmRaw)
	if s1 != nil && s2 != nil {
		if deg := degradation(*s1, *s2); deg > e.profile.R2DegradationThreshold {
			item.Decision = DecisionDrop
			item.Reasons = append(item.Reasons, r2Reason(deg))
			item.ReasonCodes = append(item.ReasonCodes, reasons.CodeR2Degraded)
			return item
		}
	}

	// R3: plateau density hint. Freezes, never drops.
	if count := density[c.norm.StrategyID]; count >= e.profile.R3DensityThreshold {
		item.Decision = DecisionFreeze
		item.Reasons = append(item.Reasons, r3Reason(count, e.profile.R3DensityThreshold))
		item.ReasonCodes = append(item.ReasonCodes, reasons.CodeR3DensityThreshold)
	}

	// Policy freeze hooks: may add FREEZE, never KEEP, never override DROP.
	fired, hookErr := e.hooks.Fired(hookFacts(c, s1))
	if hookErr != nil {
		e.log.Warn("policy freeze hook evaluation incomplete",
			"candidate_id", c.id, "err", hookErr)
	}
	for _, name := range fired {
		item.Decision = DecisionFreeze
		item.Reasons = append(item.Reasons, "policy: "+name)
		item.ReasonCodes = append(item.ReasonCodes, reasons.CodePolicyFreezeHook)
	}

	if item.Decision == "" {
		item.Decision = DecisionKeep
	}
	return item
}

// confirmKeySet indexes stage-2 winners by their matching key.
func confirmKeySet(stage2 artifacts.Stage, bothV2 bool) map[string]map[string]any {
	out := make(map[string]map[string]any, len(stage2.Winners.TopK))
	for _, raw := range stage2.Winners.TopK {
		derived := ""
		if bothV2 {
			shape := candidate.ShapeLegacy
			if artifacts.ItemIsV2(raw) || stage2.Winners.IsV2() {
				shape = candidate.ShapeV2
			}
			norm := candidate.Normalize(raw, stage2.ConfigSnapshot, shape)
			if norm.StrategyID != "" {
				if id, err := candidate.ID(norm.StrategyID, norm.Params); err == nil {
					derived = id
				}
			}
		}
		if key, ok := matchKey(raw, bothV2, derived); ok {
			out[key] = raw
		}
	}
	return out
}

// strategyDensity counts stage-1 top-k candidates per normalized strategy.
func strategyDensity(cands []stagedCandidate) map[string]int {
	density := make(map[string]int)
	for _, c := range cands {
		density[c.norm.StrategyID]++
	}
	return density
}

// stageEvidence builds the evidence reference for one stage, listing the
// artifact files that actually exist and the metric values consulted.
func stageEvidence(stage artifacts.Stage, stageName string, raw map[string]any) EvidenceRef {
	ref := EvidenceRef{
		RunID:         stage.Manifest.RunID,
		StageName:     stageName,
		ArtifactPaths: existingArtifacts(stage.Dir),
		KeyMetrics:    map[string]float64{},
	}
	if v := keyMetric(raw); v != nil {
		ref.KeyMetrics["key_metric"] = *v
	}
	for _, name := range []string{"net_profit", "trades", "max_dd", "proxy_value"} {
		if v := lookupMetric(raw, name); v != nil {
			ref.KeyMetrics[name] = *v
		}
	}
	return ref
}

func existingArtifacts(dir string) []string {
	names := []string{
		artifacts.ManifestFile,
		artifacts.MetricsFile,
		artifacts.WinnersFile,
		artifacts.ConfigSnapshotFile,
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err == nil {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		// The winners list was consulted even if it was absent; a
		// DROP/FREEZE must always point at the path it looked for.
		out = append(out, artifacts.WinnersFile)
	}
	return out
}

// hookFacts exposes the candidate's normalized facts to CEL hooks.
func hookFacts(c stagedCandidate, key *float64) map[string]any {
	facts := map[string]any{"strategy_id": c.norm.StrategyID}
	if c.norm.Metrics.NetProfit != nil {
		facts["net_profit"] = *c.norm.Metrics.NetProfit
	}
	if c.norm.Metrics.Trades != nil {
		facts["trades"] = *c.norm.Metrics.Trades
	}
	if c.norm.Metrics.MaxDD != nil {
		facts["max_dd"] = *c.norm.Metrics.MaxDD
	}
	if c.norm.Metrics.ProxyValue != nil {
		facts["proxy_value"] = *c.norm.Metrics.ProxyValue
	}
	if key != nil {
		facts["key_metric"] = *key
	}
	return facts
}
