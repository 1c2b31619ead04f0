// Package policy loads the governance policy profile: the rule thresholds,
// the policy version stamped onto verdicts, and optional CEL freeze hooks.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in defaults; a profile file overrides them field by field.
const (
	DefaultPolicyVersion          = "1.0.0"
	DefaultR2DegradationThreshold = 0.20
	DefaultR3DensityThreshold     = 3
)

// Hook is one named CEL freeze hook. A hook that evaluates true adds a
// FREEZE to the candidate; hooks can never produce KEEP or override DROP.
type Hook struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// Profile is the active governance policy.
type Profile struct {
	PolicyVersion          string  `yaml:"policy_version" json:"policy_version"`
	R2DegradationThreshold float64 `yaml:"r2_degradation_threshold" json:"r2_degradation_threshold"`
	R3DensityThreshold     int     `yaml:"r3_density_threshold" json:"r3_density_threshold"`
	FreezeHooks            []Hook  `yaml:"freeze_hooks,omitempty" json:"freeze_hooks,omitempty"`
}

// Default returns the built-in policy profile.
func Default() *Profile {
	return &Profile{
		PolicyVersion:          DefaultPolicyVersion,
		R2DegradationThreshold: DefaultR2DegradationThreshold,
		R3DensityThreshold:     DefaultR3DensityThreshold,
	}
}

// Load reads a YAML policy profile. Zero-valued fields fall back to the
// built-in defaults so a profile only needs to name what it changes.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: parse profile %s: %w", path, err)
	}

	if p.PolicyVersion == "" {
		p.PolicyVersion = DefaultPolicyVersion
	}
	if p.R2DegradationThreshold == 0 {
		p.R2DegradationThreshold = DefaultR2DegradationThreshold
	}
	if p.R3DensityThreshold == 0 {
		p.R3DensityThreshold = DefaultR3DensityThreshold
	}

	for i, h := range p.FreezeHooks {
		if h.Name == "" || h.Expr == "" {
			return nil, fmt.Errorf("policy: freeze hook %d needs both name and expr", i)
		}
	}
	return &p, nil
}
