// Package candidate normalizes research-stage winner items into a single
// shape and derives stable candidate identifiers from it.
//
// Winner items arrive in two historical schemas. The legacy schema predates
// per-item strategy ids; the v2 schema carries strategy_id, params and a
// nested metrics object. Normalization is an explicit match over the schema
// variant, never a best-effort attribute probe.
package candidate

import (
	"fmt"

	"github.com/Quantmill-Labs/vouch/pkg/canonical"
)

// Shape discriminates the two winner item schemas.
type Shape int

const (
	ShapeLegacy Shape = iota
	ShapeV2
)

// LegacyStrategyID is the only strategy the pipeline ran at the legacy
// schema version; legacy items default to it.
const LegacyStrategyID = "donchian_atr"

// Metrics is the per-candidate metric subset governance rules consume.
// Nil pointers mean the value was not present in the source item.
type Metrics struct {
	NetProfit  *float64
	Trades     *float64
	MaxDD      *float64
	ProxyValue *float64
}

// Normalized is the single candidate shape the rule engine operates on.
type Normalized struct {
	StrategyID string
	Params     map[string]any
	Metrics    Metrics
}

// Normalize converts a raw winner item into the Normalized shape.
//
// For ShapeV2, strategy_id and params are read directly and metrics come
// from the nested metrics object with legacy top-level fallbacks.
//
// For ShapeLegacy, strategy_id defaults to LegacyStrategyID and params are
// recovered from the item's own params field, then from the stage config
// snapshot, and finally from the degraded {param_id: value} fallback. That
// last fallback loses information and is kept deliberately: existing
// persisted verdicts were produced with it, and the true params are
// unrecoverable without the original config snapshot.
func Normalize(raw map[string]any, configSnapshot map[string]any, shape Shape) Normalized {
	switch shape {
	case ShapeV2:
		return normalizeV2(raw)
	default:
		return normalizeLegacy(raw, configSnapshot)
	}
}

func normalizeV2(raw map[string]any) Normalized {
	n := Normalized{StrategyID: stringField(raw, "strategy_id")}
	if p, ok := raw["params"].(map[string]any); ok {
		n.Params = p
	} else {
		n.Params = map[string]any{}
	}

	nested, _ := raw["metrics"].(map[string]any)
	n.Metrics = Metrics{
		NetProfit:  metricWithFallback(nested, raw, "net_profit"),
		Trades:     metricWithFallback(nested, raw, "trades"),
		MaxDD:      metricWithFallback(nested, raw, "max_dd"),
		ProxyValue: metricWithFallback(nested, raw, "proxy_value"),
	}
	return n
}

func normalizeLegacy(raw map[string]any, configSnapshot map[string]any) Normalized {
	n := Normalized{StrategyID: LegacyStrategyID}

	if p, ok := raw["params"].(map[string]any); ok {
		n.Params = p
	} else if p, ok := legacyParamsFromSnapshot(configSnapshot); ok {
		n.Params = p
	} else if v, ok := raw["param_id"]; ok {
		// Degraded fallback: the real params are gone.
		n.Params = map[string]any{"param_id": v}
	} else {
		n.Params = map[string]any{}
	}

	n.Metrics = Metrics{
		NetProfit:  Float(raw, "net_profit"),
		Trades:     Float(raw, "trades"),
		MaxDD:      Float(raw, "max_dd"),
		ProxyValue: Float(raw, "proxy_value"),
	}
	return n
}

// ID derives the stable candidate identifier:
//
//	strategy_id + ":" + hex(sha256(canonical_json(params)))[:12]
//
// Identical (strategy_id, params) inputs always yield the identical id,
// independent of map key insertion order.
func ID(strategyID string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	h, err := canonical.Hash(params)
	if err != nil {
		return "", fmt.Errorf("candidate: params hash failed: %w", err)
	}
	return strategyID + ":" + h[:12], nil
}

// Float extracts a numeric field from a raw JSON object. JSON numbers
// decode as float64; integer-typed values from hand-built maps are
// accepted too.
func Float(m map[string]any, key string) *float64 {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

func metricWithFallback(nested, top map[string]any, key string) *float64 {
	if v := Float(nested, key); v != nil {
		return v
	}
	return Float(top, key)
}

func legacyParamsFromSnapshot(snapshot map[string]any) (map[string]any, bool) {
	if snapshot == nil {
		return nil, false
	}
	p, ok := snapshot["params"].(map[string]any)
	return p, ok
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
