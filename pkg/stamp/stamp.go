// Package stamp implements the verdict stamp: the immutable version
// binding attached to every persisted verdict. The stamp proves which
// rules ran (policy, dictionary, schema contract, evaluator versions); the
// accompanying evidence snapshot proves what they ran on.
package stamp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ErrMissingVersion is returned when any of the four version fields is
// empty. There are no defaults: a default would mask an unversioned
// evaluator and break replay.
var ErrMissingVersion = errors.New("stamp: all four version fields are required")

// ErrSchemaViolation is returned when a persisted stamp fails closed-schema
// validation on reload.
var ErrSchemaViolation = errors.New("stamp: schema violation")

// Stamp is a frozen version-binding record. It is constructed once via
// CreateForJob and carries no mutators.
type Stamp struct {
	jobID                 string
	policyVersion         string
	dictionaryVersion     string
	schemaContractVersion string
	evaluatorVersion      string
	createdAt             time.Time
}

// CreateForJob builds a stamp. Purely a constructor: no business logic, no
// lookups. Every version argument must be non-empty.
func CreateForJob(jobID, policyVersion, dictionaryVersion, schemaContractVersion, evaluatorVersion string) (*Stamp, error) {
	if jobID == "" {
		return nil, errors.New("stamp: job id is required")
	}
	if policyVersion == "" || dictionaryVersion == "" || schemaContractVersion == "" || evaluatorVersion == "" {
		return nil, ErrMissingVersion
	}
	return &Stamp{
		jobID:                 jobID,
		policyVersion:         policyVersion,
		dictionaryVersion:     dictionaryVersion,
		schemaContractVersion: schemaContractVersion,
		evaluatorVersion:      evaluatorVersion,
		createdAt:             time.Now().UTC(),
	}, nil
}

// JobID returns the verdict job the stamp is bound to.
func (s *Stamp) JobID() string { return s.jobID }

// PolicyVersion returns the governance policy version that produced the
// verdict.
func (s *Stamp) PolicyVersion() string { return s.policyVersion }

// DictionaryVersion returns the reason code dictionary version.
func (s *Stamp) DictionaryVersion() string { return s.dictionaryVersion }

// SchemaContractVersion returns the persisted-record schema version.
func (s *Stamp) SchemaContractVersion() string { return s.schemaContractVersion }

// EvaluatorVersion returns the evaluator build version.
func (s *Stamp) EvaluatorVersion() string { return s.evaluatorVersion }

// CreatedAt returns the stamp creation time.
func (s *Stamp) CreatedAt() time.Time { return s.createdAt }

// SameVersions reports whether two stamps bind the identical versions.
// CreatedAt is deliberately excluded: two stamps from the same code and
// policy are replay-equivalent regardless of when they were minted.
func (s *Stamp) SameVersions(other *Stamp) bool {
	if other == nil {
		return false
	}
	return s.policyVersion == other.policyVersion &&
		s.dictionaryVersion == other.dictionaryVersion &&
		s.schemaContractVersion == other.schemaContractVersion &&
		s.evaluatorVersion == other.evaluatorVersion
}

// Validate checks that each version field parses as semantic versioning.
// Placeholder strings like "unversioned" fail here rather than at audit
// time months later.
func (s *Stamp) Validate() error {
	fields := map[string]string{
		"policy_version":          s.policyVersion,
		"dictionary_version":      s.dictionaryVersion,
		"schema_contract_version": s.schemaContractVersion,
		"evaluator_version":       s.evaluatorVersion,
	}
	for name, v := range fields {
		if _, err := semver.NewVersion(v); err != nil {
			return fmt.Errorf("stamp: %s %q is not semver: %w", name, v, err)
		}
	}
	return nil
}

// --- serialization -------------------------------------------------------

type stampDTO struct {
	JobID                 string    `json:"job_id"`
	PolicyVersion         string    `json:"policy_version"`
	DictionaryVersion     string    `json:"dictionary_version"`
	SchemaContractVersion string    `json:"schema_contract_version"`
	EvaluatorVersion      string    `json:"evaluator_version"`
	CreatedAt             time.Time `json:"created_at"`
}

// MarshalJSON serializes the stamp in its persisted wire form.
func (s *Stamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(stampDTO{
		JobID:                 s.jobID,
		PolicyVersion:         s.policyVersion,
		DictionaryVersion:     s.dictionaryVersion,
		SchemaContractVersion: s.schemaContractVersion,
		EvaluatorVersion:      s.evaluatorVersion,
		CreatedAt:             s.createdAt,
	})
}

// UnmarshalJSON reloads a persisted stamp, rejecting unknown fields and
// empty version strings.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var dto stampDTO
	if err := dec.Decode(&dto); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if dto.JobID == "" {
		return fmt.Errorf("%w: empty job_id", ErrSchemaViolation)
	}
	if dto.PolicyVersion == "" || dto.DictionaryVersion == "" ||
		dto.SchemaContractVersion == "" || dto.EvaluatorVersion == "" {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, ErrMissingVersion)
	}
	*s = Stamp{
		jobID:                 dto.JobID,
		policyVersion:         dto.PolicyVersion,
		dictionaryVersion:     dto.DictionaryVersion,
		schemaContractVersion: dto.SchemaContractVersion,
		evaluatorVersion:      dto.EvaluatorVersion,
		createdAt:             dto.CreatedAt,
	}
	return nil
}
