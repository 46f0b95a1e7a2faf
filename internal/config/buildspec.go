package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/flatpak-composer/internal/compose"
	"github.com/open-edge-platform/flatpak-composer/internal/config/validate"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// FlatpakInfo is the flatpak section of a build description.
type FlatpakInfo struct {
	// ID is the application id; unused for runtimes.
	ID             string `yaml:"id,omitempty"`
	Runtime        string `yaml:"runtime"`
	RuntimeVersion string `yaml:"runtime-version"`
	// SDK defaults to Runtime.
	SDK        string   `yaml:"sdk,omitempty"`
	FinishArgs []string `yaml:"finish-args,omitempty"`
}

// BuildSpec is a parsed flatpak.yml.
type BuildSpec struct {
	Flatpak FlatpakInfo     `yaml:"flatpak"`
	Compose compose.Compose `yaml:"compose"`

	// Path is the file the build description was loaded from, if any.
	Path string `yaml:"-"`
}

// LoadBuildSpec reads, validates and decodes a build description. When
// resolve is set, rpm_dir entries are read relative to the file's directory.
func LoadBuildSpec(path string, resolve bool) (*BuildSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build description: %w", err)
	}
	spec, err := parseYAMLBuildSpec(data)
	if err != nil {
		return nil, fmt.Errorf("loading build description %s: %w", path, err)
	}
	spec.Path = path

	if resolve {
		if err := spec.Compose.Resolve(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	logger.Logger().Debugf("loaded build description %s (%d modules)", path, len(spec.Compose.Modules))
	return spec, nil
}

func parseYAMLBuildSpec(data []byte) (*BuildSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("build description is empty")
	}
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting build description to JSON: %w", err)
	}
	if err := validate.ValidateBuildSpecJSON(jsonData); err != nil {
		return nil, err
	}

	var spec BuildSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing build description: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the cross-field rules of a build description.
func (s *BuildSpec) Validate() error {
	mode, err := s.Compose.Mode()
	if err != nil {
		return err
	}
	if mode == flatpak.ModeApplication && s.Flatpak.ID == "" {
		return fmt.Errorf("flatpak.id is required for applications")
	}
	seen := make(map[string]bool, len(s.Compose.Modules))
	for _, m := range s.Compose.Modules {
		if seen[m.Name] {
			return fmt.Errorf("module %s is listed more than once", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Mode reports whether the description builds a runtime or an application.
func (s *BuildSpec) Mode() flatpak.Mode {
	mode, _ := s.Compose.Mode()
	return mode
}

// SDKName returns the sdk id, falling back to the runtime id.
func (s *BuildSpec) SDKName() string {
	if s.Flatpak.SDK != "" {
		return s.Flatpak.SDK
	}
	return s.Flatpak.Runtime
}
