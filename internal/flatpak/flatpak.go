// Package flatpak holds the values shared by the export, validation and
// bundling stages.
package flatpak

const (
	// BuildRoot is where the generated Dockerfile installs the flatpak tree,
	// relative to the root of the exported container filesystem.
	BuildRoot = "var/tmp/flatpak-build"

	// ManifestEntry is the package-query output written next to BuildRoot
	// by the container build.
	ManifestEntry = BuildRoot + ".rpm_qf"

	// RuntimeProfile is the module profile listing the packages of a runtime.
	RuntimeProfile = "runtime"
)

// Mode selects between building a runtime and an application.
type Mode int

const (
	ModeApplication Mode = iota
	ModeRuntime
)

func (m Mode) String() string {
	if m == ModeRuntime {
		return "runtime"
	}
	return "application"
}
