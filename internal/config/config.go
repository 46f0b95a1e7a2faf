package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/open-edge-platform/flatpak-composer/internal/config/validate"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// GlobalConfig holds the tool-wide settings read from config.yml.
type GlobalConfig struct {
	WorkDir string        `yaml:"work_dir"`
	TempDir string        `yaml:"temp_dir"`
	Arch    string        `yaml:"arch"`
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Signing SigningConfig `yaml:"signing"`
}

// LoggingConfig controls the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ExportConfig controls how the rewritten filesystem tarball is written.
type ExportConfig struct {
	Compression      string `yaml:"compression"`
	CompressionLevel int    `yaml:"compression_level"`
	Progress         bool   `yaml:"progress"`
}

// SigningConfig enables a detached OpenPGP signature of the OCI tarball when
// KeyFile is set. PassphraseEnv names the environment variable holding the
// key passphrase.
type SigningConfig struct {
	KeyFile       string `yaml:"key_file"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// DefaultGlobalConfig returns the settings used when no config file is given.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		WorkDir: "./workspace",
		Logging: LoggingConfig{Level: "info"},
		Export: ExportConfig{
			Compression: "gzip",
		},
	}
}

var (
	globalMu     sync.RWMutex
	globalConfig = DefaultGlobalConfig()
)

// Global returns the process-wide configuration.
func Global() *GlobalConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *GlobalConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// WorkDir returns the absolute work directory of the process-wide config.
func WorkDir() (string, error) {
	return NewConfigHelpers(Global()).WorkDir()
}

// ConfigFileName is the name looked up under the XDG config directories.
const ConfigFileName = "config.yml"

const configDirName = "flatpak-composer"

// FindConfigFile returns the first flatpak-composer/config.yml found in the
// XDG config directories, or "" when there is none.
func FindConfigFile() string {
	p, err := xdg.SearchConfigFile(filepath.Join(configDirName, ConfigFileName))
	if err != nil {
		return ""
	}
	return p
}

// LoadGlobalConfig reads config.yml from path. An empty path yields the
// defaults.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	if path == "" {
		return DefaultGlobalConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := parseGlobalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	logger.Logger().Debugf("loaded global config from %s", path)
	return cfg, nil
}

func parseGlobalConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting config to JSON: %w", err)
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the schema cannot express.
func (c *GlobalConfig) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Export.CompressionLevel < 0 {
		return fmt.Errorf("export.compression_level must not be negative")
	}
	if c.Signing.PassphraseEnv != "" && c.Signing.KeyFile == "" {
		return fmt.Errorf("signing.passphrase_env is set but signing.key_file is not")
	}
	return nil
}
