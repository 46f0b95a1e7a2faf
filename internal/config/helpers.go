package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// WorkDir returns the absolute path to the work directory
func (c *ConfigHelpers) WorkDir() (string, error) {
	return filepath.Abs(c.config.WorkDir)
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// SigningEnabled reports whether the OCI tarball gets signed.
func (c *ConfigHelpers) SigningEnabled() bool {
	return c.config.Signing.KeyFile != ""
}

// Passphrase returns the signing key passphrase from the configured
// environment variable, or nil.
func (c *ConfigHelpers) Passphrase() []byte {
	if c.config.Signing.PassphraseEnv == "" {
		return nil
	}
	if v, ok := os.LookupEnv(c.config.Signing.PassphraseEnv); ok {
		return []byte(v)
	}
	return nil
}

// CreateWorkDir ensures the work directory exists
func (c *ConfigHelpers) CreateWorkDir() error {
	workDir, err := c.WorkDir()
	if err != nil {
		return fmt.Errorf("resolving work directory: %w", err)
	}
	return createDirIfNotExists(workDir)
}

// CreateBuildDir creates a fresh, uniquely named directory for one build
// under the work directory.
func (c *ConfigHelpers) CreateBuildDir() (string, error) {
	if err := c.CreateWorkDir(); err != nil {
		return "", err
	}
	workDir, err := c.WorkDir()
	if err != nil {
		return "", fmt.Errorf("resolving work directory: %w", err)
	}
	buildDir := filepath.Join(workDir, "flatpak-"+uuid.NewString())
	if err := os.Mkdir(buildDir, 0755); err != nil {
		return "", fmt.Errorf("creating build directory: %w", err)
	}
	return buildDir, nil
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
