package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// snapshotSchema is the closed schema contract for persisted snapshots.
// additionalProperties is false at every level: a payload carrying a field
// this version does not know about is rejected rather than reinterpreted.
const snapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["job_id", "captured_at", "evidence_root", "files"],
  "additionalProperties": false,
  "properties": {
    "job_id": {"type": "string", "minLength": 1},
    "captured_at": {"type": "string"},
    "evidence_root": {"type": "string"},
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["relpath", "sha256", "size_bytes", "created_at"],
        "additionalProperties": false,
        "properties": {
          "relpath": {"type": "string", "minLength": 1},
          "sha256": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
          "size_bytes": {"type": "integer", "minimum": 0},
          "created_at": {"type": "string"}
        }
      }
    }
  }
}`

var snapshotSchema = mustCompileSchema("snapshot.schema.json", snapshotSchemaJSON)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://vouch.schemas.local/" + name
	if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("snapshot: schema resource %s: %v", name, err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("snapshot: schema compile %s: %v", name, err))
	}
	return s
}

func validateAgainstSchema(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}
