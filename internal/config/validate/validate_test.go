package validate

import (
	"strings"
	"testing"
)

const sampleBuildSpec = `{
  "flatpak": {
    "id": "org.gnome.eog",
    "runtime": "org.fedoraproject.Platform",
    "runtime-version": "28",
    "finish-args": ["--filesystem=host", "--share=ipc"]
  },
  "compose": {
    "base_module": "eog",
    "modules": [
      {"name": "flatpak-runtime", "profiles": {"runtime": ["bash", "glibc"]}},
      {"name": "eog", "stream": "f28", "buildrequires": ["flatpak-runtime"],
       "rpms": ["eog-0:3.28.3-1.module_2123+73a9ef6f.x86_64.rpm"]}
    ]
  }
}`

func TestValidateBuildSpecJSON(t *testing.T) {
	if err := ValidateBuildSpecJSON([]byte(sampleBuildSpec)); err != nil {
		t.Fatalf("expected sample to validate: %v", err)
	}
}

func TestValidateBuildSpecJSONRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing compose", `{"flatpak": {"runtime": "r", "runtime-version": "1"}}`},
		{"unknown key", `{"flatpak": {"runtime": "r", "runtime-version": "1", "branch": "x"}, "compose": {"base_module": "m", "modules": [{"name": "m"}]}}`},
		{"bad app id", `{"flatpak": {"id": "eog", "runtime": "r", "runtime-version": "1"}, "compose": {"base_module": "m", "modules": [{"name": "m"}]}}`},
		{"bad finish arg", `{"flatpak": {"runtime": "r", "runtime-version": "1", "finish-args": ["share=ipc"]}, "compose": {"base_module": "m", "modules": [{"name": "m"}]}}`},
		{"bad rpm filename", `{"flatpak": {"runtime": "r", "runtime-version": "1"}, "compose": {"base_module": "m", "modules": [{"name": "m", "rpms": ["eog.rpm"]}]}}`},
		{"empty modules", `{"flatpak": {"runtime": "r", "runtime-version": "1"}, "compose": {"base_module": "m", "modules": []}}`},
		{"not json", `flatpak:`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateBuildSpecJSON([]byte(tt.data)); err == nil {
				t.Errorf("expected %s to be rejected", tt.name)
			}
		})
	}
}

func TestValidateAgainstSchemaRef(t *testing.T) {
	schema, err := loadSchema(buildSpecSchema)
	if err != nil {
		t.Fatal(err)
	}
	check := func(doc string) error {
		return ValidateAgainstSchema(buildSpecSchema, schema, []byte(doc), "#/$defs/Compose")
	}
	if err := check(`{"base_module": "m", "modules": [{"name": "m"}]}`); err != nil {
		t.Errorf("expected compose section to validate: %v", err)
	}
	if err := check(`{"modules": [{"name": "m"}]}`); err == nil {
		t.Error("expected missing base_module to be rejected")
	}
}

func TestValidateConfigJSON(t *testing.T) {
	if err := ValidateConfigJSON([]byte(`{"work_dir": "./work", "export": {"compression": "zstd", "compression_level": 9}}`)); err != nil {
		t.Errorf("expected config to validate: %v", err)
	}
	err := ValidateConfigJSON([]byte(`{"export": {"compression": "lz4"}}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation") {
		t.Errorf("expected compression enum failure, got %v", err)
	}
	if err := ValidateConfigJSON([]byte(`{"cache_dir": "x"}`)); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}

func TestValidateAgainstSchemaBadSchema(t *testing.T) {
	err := ValidateAgainstSchema("broken-schema", []byte(`{"type": 12}`), []byte(`{}`), "")
	if err == nil || !strings.Contains(err.Error(), "compiling schema") {
		t.Errorf("expected compile failure, got %v", err)
	}
}

// FuzzValidateAgainstSchema checks schema validation never panics.
func FuzzValidateAgainstSchema(f *testing.F) {
	basicSchema := []byte(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"stream": {"type": "string"}
		},
		"required": ["name"]
	}`)

	f.Add("test-schema", basicSchema, []byte(`{"name": "eog", "stream": "f28"}`), "")
	f.Add("test-schema", basicSchema, []byte(`{}`), "")
	f.Add("test-schema", basicSchema, []byte(`{"name": null}`), "")
	f.Add("test-schema", basicSchema, []byte(`invalid json`), "")
	f.Add("test-schema", basicSchema, []byte(`[]`), "")

	f.Fuzz(func(t *testing.T, name string, schema []byte, data []byte, ref string) {
		if name == "" || strings.Contains(name, "#") || len(name) < 3 {
			t.Skip("invalid schema name")
		}
		if len(schema) < 10 {
			t.Skip("schema too small")
		}
		_ = ValidateAgainstSchema(name, schema, data, ref)
	})
}

// FuzzValidateBuildSpecJSON checks build description validation never panics.
func FuzzValidateBuildSpecJSON(f *testing.F) {
	f.Add([]byte(sampleBuildSpec))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"compose": null}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		_ = ValidateBuildSpecJSON(data)
	})
}
