package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/intent.schema.json
var schemaFS embed.FS

var intentSchema = mustCompileIntentSchema()

func mustCompileIntentSchema() *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/intent.schema.json")
	if err != nil {
		panic(fmt.Sprintf("intent schema missing from embed: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("intent.schema.json", bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("intent schema: %v", err))
	}
	s, err := c.Compile("intent.schema.json")
	if err != nil {
		panic(fmt.Sprintf("intent schema: %v", err))
	}
	return s
}

// ValidateIntent checks a raw client frame against the intent schema. A nil
// error means the frame decodes to a known intent type with a well-formed
// payload; anything else is a validation rejection at the boundary.
func ValidateIntent(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("intent not valid JSON: %w", err)
	}
	if err := intentSchema.Validate(v); err != nil {
		return fmt.Errorf("intent rejected by schema: %w", err)
	}
	return nil
}
