package reasons

// DictionaryVersion is stamped onto verdicts so a stored report can be
// re-read against the dictionary that explained it.
const DictionaryVersion = "1.0.0"

// Reason codes are stable identifiers attached to governance and gate
// verdicts. They MUST NOT change between releases: persisted verdicts
// reference them by value.
const (
	// --- Governance rules ---
	CodeR1Unverified         = "R1_UNVERIFIED"
	CodeR1MissingCandidateID = "R1_MISSING_CANDIDATE_ID"
	CodeR1MissingParamID     = "R1_MISSING_PARAM_ID"
	CodeR2Degraded           = "R2_DEGRADED"
	CodeR3DensityThreshold   = "R3_DENSITY_OVER_THRESHOLD"
	CodePolicyFreezeHook     = "POLICY_FREEZE_HOOK"

	// --- Gate graph ---
	CodeGateDependencyCycle = "GATE_DEPENDENCY_CYCLE"
	CodeGatePropagatedFail  = "GATE_PROPAGATED_FAIL"

	// --- Evidence integrity ---
	CodeMissingArtifact        = "MISSING_ARTIFACT"
	CodeEvidenceHashMismatch   = "EVIDENCE_HASH_MISMATCH"
	CodeSchemaValidationFailed = "SCHEMA_VALIDATION_FAILED"
)

// AllCodes returns the full set of registered reason codes.
func AllCodes() []string {
	codes := make([]string, 0, len(dictionary))
	for code := range dictionary {
		codes = append(codes, code)
	}
	return codes
}
