// Package provenance checks that the packages installed in a flatpak tree
// are exactly those its module metadata accounts for.
package provenance

import (
	"fmt"

	"github.com/open-edge-platform/flatpak-composer/internal/compose"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/general/slice"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
)

// Check validates components for the bundle mode and returns the components
// that belong to the image: all of them for a runtime, the ones attributed
// to application modules for an application.
func Check(mode flatpak.Mode, components []rpmutils.Component, c *compose.Compose) ([]rpmutils.Component, error) {
	if mode == flatpak.ModeRuntime {
		base, err := c.Base()
		if err != nil {
			return nil, err
		}
		return CheckRuntime(components, base)
	}
	return CheckApp(components, c)
}

// CheckRuntime requires the installed package names to equal the runtime
// profile of base exactly.
func CheckRuntime(components []rpmutils.Component, base *compose.Module) ([]rpmutils.Component, error) {
	profile, ok := base.Profiles[flatpak.RuntimeProfile]
	if !ok {
		return nil, fmt.Errorf("module %s has no %s profile", base.Name, flatpak.RuntimeProfile)
	}

	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name
	}
	installed := slice.ToSet(names)
	expected := slice.ToSet(profile)

	if !slice.SetEqual(installed, expected) {
		return nil, &MismatchError{
			Missing: slice.Difference(expected, installed),
			Extra:   slice.Difference(installed, expected),
		}
	}
	return components, nil
}

// IdentifyAppSourceModules finds the runtime the base module was built
// against and every module built against that runtime, which were thus
// built with prefix=/app.
func IdentifyAppSourceModules(c *compose.Compose) (*compose.Module, []*compose.Module, error) {
	log := logger.Logger()

	base, err := c.Base()
	if err != nil {
		return nil, nil, err
	}

	var runtime *compose.Module
	for _, name := range base.BuildRequires {
		m := c.Module(name)
		if m == nil {
			log.Debugf("build requirement %s of %s is not part of the compose", name, base.Name)
			continue
		}
		if m.HasProfile(flatpak.RuntimeProfile) {
			runtime = m
			break
		}
	}
	if runtime == nil {
		return nil, nil, fmt.Errorf("%w in the buildrequires for %s", ErrRuntimeModuleNotFound, base.Name)
	}

	var appModules []*compose.Module
	baseIncluded := false
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.BuildsAgainst(runtime.Name) {
			appModules = append(appModules, m)
			if m == base {
				baseIncluded = true
			}
		}
	}
	if !baseIncluded {
		return nil, nil, fmt.Errorf("base module %s is not built against runtime %s", base.Name, runtime.Name)
	}

	log.Debugf("runtime module %s, %d application modules", runtime.Name, len(appModules))
	return runtime, appModules, nil
}

// CheckApp accepts each component that is part of the runtime profile or
// whose exact build was produced by one of the application modules. Every
// other component is a stray and fails the check.
func CheckApp(components []rpmutils.Component, c *compose.Compose) ([]rpmutils.Component, error) {
	runtime, appModules, err := IdentifyAppSourceModules(c)
	if err != nil {
		return nil, err
	}

	runtimeRPMs := slice.ToSet(runtime.Profiles[flatpak.RuntimeProfile])

	var appComponents []rpmutils.Component
	var strays []string
	for _, comp := range components {
		if _, ok := runtimeRPMs[comp.Name]; ok {
			continue
		}

		filename := comp.Filename()
		found := false
		for _, m := range appModules {
			if m.ProducedRPM(filename) {
				found = true
				break
			}
		}
		if found {
			appComponents = append(appComponents, comp)
			continue
		}
		strays = append(strays, filename)
	}

	if len(strays) > 0 {
		return nil, &StrayComponentsError{Strays: strays}
	}
	return appComponents, nil
}
