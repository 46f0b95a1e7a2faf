// Package compose describes the modules a flatpak was composed from: their
// profiles, build requirements and the rpms each module build produced.
package compose

import (
	"fmt"
	"path/filepath"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/general/slice"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
)

// Module is the build metadata of one module.
type Module struct {
	Name   string `yaml:"name"`
	Stream string `yaml:"stream,omitempty"`
	// Profiles maps a profile name to the rpm names it installs.
	Profiles map[string][]string `yaml:"profiles,omitempty"`
	// BuildRequires lists the modules this module was built against, in
	// declaration order.
	BuildRequires []string `yaml:"buildrequires,omitempty"`
	// RPMs are the name-epoch:version-release.arch.rpm filenames the module
	// build produced.
	RPMs []string `yaml:"rpms,omitempty"`
	// RPMDir optionally points at the built rpms; their headers are read
	// and added to RPMs by Resolve.
	RPMDir string `yaml:"rpm_dir,omitempty"`
}

// HasProfile reports whether the module declares the named profile.
func (m *Module) HasProfile(name string) bool {
	_, ok := m.Profiles[name]
	return ok
}

// BuildsAgainst reports whether the module was built against name.
func (m *Module) BuildsAgainst(name string) bool {
	return slice.Contains(m.BuildRequires, name)
}

// ProducedRPM reports whether filename is one of the module's build outputs.
func (m *Module) ProducedRPM(filename string) bool {
	return slice.Contains(m.RPMs, filename)
}

// Compose is the set of modules of one flatpak build.
type Compose struct {
	BaseModule string   `yaml:"base_module"`
	Modules    []Module `yaml:"modules"`
}

// Module returns the named module, or nil.
func (c *Compose) Module(name string) *Module {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i]
		}
	}
	return nil
}

// Base returns the module the flatpak is built from.
func (c *Compose) Base() (*Module, error) {
	base := c.Module(c.BaseModule)
	if base == nil {
		return nil, fmt.Errorf("base module %q is not part of the compose", c.BaseModule)
	}
	return base, nil
}

// Mode is runtime when the base module declares a runtime profile.
func (c *Compose) Mode() (flatpak.Mode, error) {
	base, err := c.Base()
	if err != nil {
		return flatpak.ModeApplication, err
	}
	if base.HasProfile(flatpak.RuntimeProfile) {
		return flatpak.ModeRuntime, nil
	}
	return flatpak.ModeApplication, nil
}

// Resolve reads the rpm headers under each module's RPMDir, relative paths
// being taken from baseDir, and merges the resulting filenames into RPMs.
func (c *Compose) Resolve(baseDir string) error {
	log := logger.Logger()
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.RPMDir == "" {
			continue
		}
		dir := m.RPMDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		names, err := rpmutils.FilenamesFromDir(dir)
		if err != nil {
			return fmt.Errorf("resolving rpms of module %s: %w", m.Name, err)
		}
		for _, n := range names {
			if !m.ProducedRPM(n) {
				m.RPMs = append(m.RPMs, n)
			}
		}
		log.Infof("module %s: %d rpms from %s", m.Name, len(names), dir)
	}
	return nil
}
