// Package validate checks configuration documents against the embedded JSON
// schemas.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const (
	buildSpecSchema = "buildspec.schema.json"
	configSchema    = "config.schema.json"
)

func loadSchema(name string) ([]byte, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", name, err)
	}
	return data, nil
}

// ValidateAgainstSchema compiles schema under name and validates the JSON
// document data against it. A non-empty ref selects a sub-schema such as
// "#/$defs/Compose".
func ValidateAgainstSchema(name string, schema []byte, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("adding schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name + ref)
	if err != nil {
		return fmt.Errorf("compiling schema %s%s: %w", name, ref, err)
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %s failed: %w", name, err)
	}
	return nil
}

// ValidateBuildSpecJSON validates a build description converted to JSON.
func ValidateBuildSpecJSON(data []byte) error {
	schema, err := loadSchema(buildSpecSchema)
	if err != nil {
		return err
	}
	return ValidateAgainstSchema(buildSpecSchema, schema, data, "")
}

// ValidateConfigJSON validates the global configuration converted to JSON.
func ValidateConfigJSON(data []byte) error {
	schema, err := loadSchema(configSchema)
	if err != nil {
		return err
	}
	return ValidateAgainstSchema(configSchema, schema, data, "")
}
