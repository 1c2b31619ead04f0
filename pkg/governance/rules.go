package governance

import (
	"fmt"
	"math"

	"github.com/Quantmill-Labs/vouch/pkg/candidate"
)

// keyMetric resolves the R2 comparison metric for one raw winner item.
// Resolution order: finalscore, then net_over_mdd, then the computed
// fallback net_profit / |max_dd|. When max_dd is zero the ratio is
// replaced by a ±Inf sentinel matching the sign of the profit.
// Returns nil when no variant is obtainable; R2 then has no opinion.
func keyMetric(raw map[string]any) *float64 {
	if v := lookupMetric(raw, "finalscore"); v != nil {
		return v
	}
	if v := lookupMetric(raw, "net_over_mdd"); v != nil {
		return v
	}

	np := lookupMetric(raw, "net_profit")
	dd := lookupMetric(raw, "max_dd")
	if np == nil || dd == nil {
		return nil
	}
	if *dd == 0 {
		var sentinel float64
		switch {
		case *np > 0:
			sentinel = math.Inf(1)
		case *np < 0:
			sentinel = math.Inf(-1)
		}
		return &sentinel
	}
	v := *np / math.Abs(*dd)
	return &v
}

// lookupMetric reads a metric from the nested metrics object first, then
// falls back to the item's top level (legacy placement).
func lookupMetric(raw map[string]any, key string) *float64 {
	if nested, ok := raw["metrics"].(map[string]any); ok {
		if v := candidate.Float(nested, key); v != nil {
			return v
		}
	}
	return candidate.Float(raw, key)
}

// degradation computes (stage1 − stage2) / |stage1|.
//
// Special cases:
//   - stage1 == 0: degraded only when stage2 went negative (full degrade).
//   - stage1 == +Inf (zero-drawdown sentinel): any finite or -Inf stage2
//     is a full degrade; a matching +Inf is no degrade.
//   - stage1 == -Inf: stage2 cannot be worse; no degrade.
func degradation(stage1, stage2 float64) float64 {
	if stage1 == 0 {
		if stage2 < 0 {
			return 1.0
		}
		return 0
	}
	if math.IsInf(stage1, 1) {
		if math.IsInf(stage2, 1) {
			return 0
		}
		return 1.0
	}
	if math.IsInf(stage1, -1) {
		return 0
	}
	return (stage1 - stage2) / math.Abs(stage1)
}

// r2Reason formats the degradation percentage the way persisted verdicts
// always have: fixed two decimals.
func r2Reason(deg float64) string {
	return fmt.Sprintf("R2: degraded_%.2f%%", deg*100)
}

func r3Reason(count, threshold int) string {
	return fmt.Sprintf("R3: density_%d_over_threshold_%d", count, threshold)
}

// matchKey resolves the stage-matching key for a raw winner item.
//
// For v2 items the key is the candidate id (the explicit candidate_id
// field when present, otherwise derived from the normalized identity).
// For legacy items it is the param_id, with fallbacks through the item's
// source and metrics sub-objects.
func matchKey(raw map[string]any, isV2 bool, derivedID string) (string, bool) {
	if isV2 {
		if s, ok := raw["candidate_id"].(string); ok && s != "" {
			return s, true
		}
		if derivedID != "" {
			return derivedID, true
		}
		return "", false
	}

	if v, ok := raw["param_id"]; ok {
		return fmt.Sprintf("%v", v), true
	}
	if src, ok := raw["source"].(map[string]any); ok {
		if v, ok := src["param_id"]; ok {
			return fmt.Sprintf("%v", v), true
		}
	}
	if m, ok := raw["metrics"].(map[string]any); ok {
		if v, ok := m["param_id"]; ok {
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}
