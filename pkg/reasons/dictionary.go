// Package reasons provides the reason code dictionary: a static,
// process-wide map that translates stable reason codes into developer and
// business explanations. The map is read-only after init and safe to share
// across concurrent evaluations without synchronization.
package reasons

import (
	"fmt"
	"sort"
	"strings"
)

// Severity grades the impact of a reason code.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Audience identifies who the explanation is written for.
type Audience string

const (
	AudienceDev Audience = "dev"
	AudienceBiz Audience = "biz"
)

// Explanation is the resolved dictionary entry for a reason code.
type Explanation struct {
	Code                 string   `json:"code"`
	DeveloperExplanation string   `json:"developer_explanation"`
	BusinessImpact       string   `json:"business_impact"`
	RecommendedAction    string   `json:"recommended_action"`
	Severity             Severity `json:"severity"`
	Audience             Audience `json:"audience"`
}

var dictionary = map[string]Explanation{
	CodeR1Unverified: {
		Code:                 CodeR1Unverified,
		DeveloperExplanation: "Stage-1 candidate has no matching stage-2 confirm winner.",
		BusinessImpact:       "Strategy result was never independently confirmed and cannot be deployed.",
		RecommendedAction:    "Check the confirm stage run for {candidate_id}; re-run stage 2 if it was skipped.",
		Severity:             SeverityError,
		Audience:             AudienceBiz,
	},
	CodeR1MissingCandidateID: {
		Code:                 CodeR1MissingCandidateID,
		DeveloperExplanation: "A v2-schema winner item carries no candidate_id matching key.",
		BusinessImpact:       "The candidate cannot be tracked across pipeline stages.",
		RecommendedAction:    "Fix the stage runner that emitted winners.json without candidate ids.",
		Severity:             SeverityError,
		Audience:             AudienceDev,
	},
	CodeR1MissingParamID: {
		Code:                 CodeR1MissingParamID,
		DeveloperExplanation: "A legacy-schema winner item carries no param_id matching key.",
		BusinessImpact:       "The candidate cannot be tracked across pipeline stages.",
		RecommendedAction:    "Fix the stage runner that emitted winners.json without param ids.",
		Severity:             SeverityError,
		Audience:             AudienceDev,
	},
	CodeR2Degraded: {
		Code:                 CodeR2Degraded,
		DeveloperExplanation: "Confirm-stage key metric degraded by {percent} versus the candidate stage.",
		BusinessImpact:       "Performance did not hold up under confirmation; likely overfit.",
		RecommendedAction:    "Inspect the stage-2 metrics; widen the parameter neighborhood before retrying.",
		Severity:             SeverityError,
		Audience:             AudienceBiz,
	},
	CodeR3DensityThreshold: {
		Code:                 CodeR3DensityThreshold,
		DeveloperExplanation: "{count} top-k candidates share the same strategy id (threshold {threshold}).",
		BusinessImpact:       "Results cluster on one strategy; plateau needs a human look before allocation.",
		RecommendedAction:    "Review the parameter plateau and pick one representative candidate.",
		Severity:             SeverityWarn,
		Audience:             AudienceBiz,
	},
	CodePolicyFreezeHook: {
		Code:                 CodePolicyFreezeHook,
		DeveloperExplanation: "A policy profile freeze hook ({hook}) evaluated true for this candidate.",
		BusinessImpact:       "The candidate is held for review per the active policy profile.",
		RecommendedAction:    "Review the hook expression in the policy profile against the candidate metrics.",
		Severity:             SeverityWarn,
		Audience:             AudienceBiz,
	},
	CodeGateDependencyCycle: {
		Code:                 CodeGateDependencyCycle,
		DeveloperExplanation: "The gate dependency graph contains a cycle: {cycle}.",
		BusinessImpact:       "Gate causality cannot be determined; the verdict is not trustworthy as-is.",
		RecommendedAction:    "Fix the depends_on configuration of the gates on the cycle.",
		Severity:             SeverityError,
		Audience:             AudienceDev,
	},
	CodeGatePropagatedFail: {
		Code:                 CodeGatePropagatedFail,
		DeveloperExplanation: "This gate failed because an upstream dependency already failed.",
		BusinessImpact:       "Collateral failure; fix the primary failure first.",
		RecommendedAction:    "Resolve the primary failing gate; this one usually clears with it.",
		Severity:             SeverityInfo,
		Audience:             AudienceDev,
	},
	CodeMissingArtifact: {
		Code:                 CodeMissingArtifact,
		DeveloperExplanation: "A stage artifact ({path}) was missing or unreadable at evaluation time.",
		BusinessImpact:       "The evaluation proceeded with defaults; the verdict may be conservative.",
		RecommendedAction:    "Check the stage runner logs for the artifact write.",
		Severity:             SeverityWarn,
		Audience:             AudienceDev,
	},
	CodeEvidenceHashMismatch: {
		Code:                 CodeEvidenceHashMismatch,
		DeveloperExplanation: "An evidence file no longer matches its snapshot hash.",
		BusinessImpact:       "The verdict's evidence has drifted or been tampered with since capture.",
		RecommendedAction:    "Treat the verdict as unreproducible; locate who modified the file.",
		Severity:             SeverityError,
		Audience:             AudienceBiz,
	},
	CodeSchemaValidationFailed: {
		Code:                 CodeSchemaValidationFailed,
		DeveloperExplanation: "A persisted record failed closed-schema validation on reload.",
		BusinessImpact:       "The record was rejected rather than silently reinterpreted.",
		RecommendedAction:    "Compare the record against the current schema contract version.",
		Severity:             SeverityError,
		Audience:             AudienceDev,
	},
}

// Explain resolves a reason code into its dictionary entry. Placeholders of
// the form {name} in the explanation texts are substituted from vars.
//
// Unknown codes never fail: they resolve to a fixed fallback entry with
// severity ERROR and audience dev naming the unknown code, so a code
// introduced without a dictionary entry degrades gracefully.
func Explain(code string, vars map[string]string) Explanation {
	e, ok := dictionary[code]
	if !ok {
		return Explanation{
			Code:                 code,
			DeveloperExplanation: fmt.Sprintf("Unknown reason code %q: no dictionary entry registered.", code),
			BusinessImpact:       "An unrecognized condition occurred; treat as an error until triaged.",
			RecommendedAction:    "Register a dictionary entry for this code.",
			Severity:             SeverityError,
			Audience:             AudienceDev,
		}
	}
	if len(vars) > 0 {
		e.DeveloperExplanation = substitute(e.DeveloperExplanation, vars)
		e.BusinessImpact = substitute(e.BusinessImpact, vars)
		e.RecommendedAction = substitute(e.RecommendedAction, vars)
	}
	return e
}

// IsKnown reports whether a code has a registered dictionary entry.
func IsKnown(code string) bool {
	_, ok := dictionary[code]
	return ok
}

// ListAllCodes enumerates every registered code in sorted order, for
// completeness testing.
func ListAllCodes() []string {
	codes := AllCodes()
	sort.Strings(codes)
	return codes
}

func substitute(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
