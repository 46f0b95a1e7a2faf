// Package ocibuild turns the filesystem export of a flatpak build container
// into an OCI flatpak bundle: it rewrites the export, validates the
// installed packages and finalizes a runtime or application with ostree and
// flatpak.
package ocibuild

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/config/manifest"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/fsexport"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/pathmap"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/provenance"
	"github.com/open-edge-platform/flatpak-composer/internal/image/imagesign"
	"github.com/open-edge-platform/flatpak-composer/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/shell"
)

// File names inside the build directory.
const (
	FilesystemBase   = "filesystem"
	ManifestFile     = "flatpak-build.rpm_qf"
	OCIImageName     = "flatpak-oci-image"
	BuildManifest    = "manifest.json"
	SPDXFile         = "spdx.json"
	ComponentsReport = "image-components"
	ScratchSubdir    = "flatpak-composer"
)

// ErrManifestMissing is returned when the export carried no package manifest.
var ErrManifestMissing = errors.New("package manifest missing from filesystem export")

// Builder assembles one bundle from a build description.
type Builder struct {
	Spec   *config.BuildSpec
	Config *config.GlobalConfig
	// WorkDir receives every artifact. When empty, Build creates a unique
	// directory below the configured work_dir.
	WorkDir string
}

// Result lists everything a build produced.
type Result struct {
	Mode         flatpak.Mode
	Ref          string
	Arch         string
	WorkDir      string
	ArchivePath  string
	ManifestPath string
	Stats        fsexport.Stats
	// Components are the packages that make up the image: all of them for a
	// runtime, the application's own for an application.
	Components    []rpmutils.Component
	OCIDir        string
	OCITar        string
	SignaturePath string
	Images        []manifest.ExportedImage
	BuildManifest string
	SPDXPath      string
}

// NewBuilder returns a Builder using cfg, or the process-wide config when
// cfg is nil.
func NewBuilder(spec *config.BuildSpec, cfg *config.GlobalConfig) *Builder {
	if cfg == nil {
		cfg = config.Global()
	}
	return &Builder{Spec: spec, Config: cfg}
}

func (b *Builder) ensureWorkDir() error {
	if b.WorkDir != "" {
		return os.MkdirAll(b.WorkDir, 0755)
	}
	dir, err := config.NewConfigHelpers(b.Config).CreateBuildDir()
	if err != nil {
		return err
	}
	b.WorkDir = dir
	return nil
}

func (b *Builder) exportOptions() (fsexport.Options, error) {
	c, err := fsexport.ParseCompression(b.Config.Export.Compression)
	if err != nil {
		return fsexport.Options{}, err
	}
	return fsexport.Options{
		Compression:      c,
		CompressionLevel: b.Config.Export.CompressionLevel,
		Progress:         b.Config.Export.Progress && isatty.IsTerminal(os.Stderr.Fd()),
	}, nil
}

// Export rewrites the container filesystem export src into the build
// directory. A failed export leaves no archive or manifest behind.
func (b *Builder) Export(src io.Reader) (*fsexport.Result, error) {
	log := logger.Logger()

	if err := b.ensureWorkDir(); err != nil {
		return nil, fmt.Errorf("preparing build directory: %w", err)
	}
	opts, err := b.exportOptions()
	if err != nil {
		return nil, err
	}

	archive := filepath.Join(b.WorkDir, FilesystemBase+opts.Compression.Extension())
	manifestPath := filepath.Join(b.WorkDir, ManifestFile)
	res, err := fsexport.ExportFilesystem(src, pathmap.ForMode(b.Spec.Mode()), archive, manifestPath, opts)
	if err != nil {
		return nil, err
	}

	log.Infof("filesystem tarfile written to %s", res.ArchivePath)
	if res.ManifestPath != "" {
		log.Infof("manifest written to %s", res.ManifestPath)
	}
	return res, nil
}

// Validate parses the package manifest and checks every installed package
// against the compose. It returns all components and the image components.
func (b *Builder) Validate(manifestPath string) ([]rpmutils.Component, []rpmutils.Component, error) {
	if manifestPath == "" {
		return nil, nil, fmt.Errorf("%w (expected %s)", ErrManifestMissing, flatpak.ManifestEntry)
	}
	all, err := rpmutils.ParseManifestFile(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	image, err := provenance.Check(b.Spec.Mode(), all, &b.Spec.Compose)
	if err != nil {
		return all, nil, fmt.Errorf("validating installed packages: %w", err)
	}
	return all, image, nil
}

var commandExists = shell.IsCommandExist

// RequiredTools lists the host commands finalizing a bundle of mode runs.
func RequiredTools(mode flatpak.Mode) []string {
	if mode == flatpak.ModeRuntime {
		return []string{"ostree", "flatpak"}
	}
	return []string{"tar", "desktop-file-edit", "flatpak"}
}

// MissingTools returns the required tools not found on the host.
func MissingTools(mode flatpak.Mode) []string {
	var missing []string
	for _, tool := range RequiredTools(mode) {
		if !commandExists(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}

// Arch returns the configured architecture, or flatpak's default one.
func (b *Builder) Arch() (string, error) {
	if b.Config.Arch != "" {
		return b.Config.Arch, nil
	}
	out, err := shell.ExecCmd("flatpak --default-arch", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get flatpak default arch: %w", err)
	}
	arch := strings.TrimSpace(out)
	if arch == "" {
		return "", fmt.Errorf("flatpak reported an empty default arch")
	}
	return arch, nil
}

// Build runs the whole pipeline on the filesystem export src. When the
// rewrite fails its outputs are removed; when validation fails the archive
// is kept for inspection.
func (b *Builder) Build(src io.Reader) (*Result, error) {
	log := logger.Logger()
	mode := b.Spec.Mode()
	log.Infof("building flatpak %s", mode)

	exported, err := b.Export(src)
	if err != nil {
		return nil, fmt.Errorf("failed to export filesystem: %w", err)
	}
	res := &Result{
		Mode:         mode,
		WorkDir:      b.WorkDir,
		ArchivePath:  exported.ArchivePath,
		ManifestPath: exported.ManifestPath,
		Stats:        exported.Stats,
	}

	_, components, err := b.Validate(exported.ManifestPath)
	if err != nil {
		return res, err
	}
	rpmutils.SortComponents(components)
	res.Components = components
	if err := b.reportComponents(components); err != nil {
		return res, err
	}

	arch, err := b.Arch()
	if err != nil {
		return res, err
	}
	res.Arch = arch

	helpers := config.NewConfigHelpers(b.Config)
	scratch, err := b.scratchDir()
	if err != nil {
		return res, err
	}
	if helpers.IsDebugMode() {
		log.Debugf("keeping ostree repository in %s", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}
	repo := filepath.Join(scratch, "repo")

	res.OCIDir = filepath.Join(b.WorkDir, OCIImageName)
	if mode == flatpak.ModeRuntime {
		res.Ref, err = b.createRuntimeOCI(exported.ArchivePath, repo, res.OCIDir, arch)
	} else {
		res.Ref, err = b.createAppOCI(exported.ArchivePath, repo, res.OCIDir, arch)
	}
	if err != nil {
		return res, err
	}
	log.Infof("OCI image is available as %s", res.OCIDir)

	img, err := manifest.ImageMetadata(res.OCIDir, manifest.ImageTypeOCI, res.Ref)
	if err != nil {
		return res, err
	}
	res.Images = append(res.Images, img)

	res.OCITar = res.OCIDir + ".tar"
	if err := tarDirectory(res.OCIDir, res.OCITar); err != nil {
		return res, fmt.Errorf("failed to tar OCI image: %w", err)
	}
	img, err = manifest.ImageMetadata(res.OCITar, manifest.ImageTypeOCITar, res.Ref)
	if err != nil {
		return res, err
	}
	res.Images = append(res.Images, img)
	log.Infof("OCI tarfile is available as %s", res.OCITar)

	if helpers.SigningEnabled() {
		res.SignaturePath, err = imagesign.SignImage(res.OCITar, b.Config.Signing.KeyFile, helpers.Passphrase())
		if err != nil {
			return res, err
		}
	}

	if err := b.writeRecords(res); err != nil {
		return res, err
	}
	return res, nil
}

// scratchDir creates the directory under temp_dir that holds the ostree
// repository of this build.
func (b *Builder) scratchDir() (string, error) {
	dir, err := config.NewConfigHelpers(b.Config).CreateTempDir(filepath.Join(ScratchSubdir, filepath.Base(b.WorkDir)))
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	return dir, nil
}

func (b *Builder) reportComponents(components []rpmutils.Component) error {
	log := logger.Logger()

	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Filename()
	}
	log.Infof("components:\n        %s", strings.Join(names, "\n        "))

	report := logger.StringListReport{Title: ComponentsReport, Items: names}
	if _, err := report.WriteToFile(b.WorkDir); err != nil {
		return fmt.Errorf("writing component report: %w", err)
	}
	return nil
}

func (b *Builder) version() string {
	if b.Spec.Mode() == flatpak.ModeRuntime {
		return b.Spec.Flatpak.RuntimeVersion
	}
	return "master"
}

func (b *Builder) writeRecords(res *Result) error {
	m := manifest.NewSoftwarePackageManifest(res.Ref, b.version(), res.Arch)
	m.Images = res.Images
	for _, c := range res.Components {
		m.Components = append(m.Components, c.Filename())
	}
	if res.SignaturePath != "" {
		m.Signature = filepath.Base(res.SignaturePath)
		m.SigAlg = "openpgp"
	}

	res.BuildManifest = filepath.Join(b.WorkDir, BuildManifest)
	if err := manifest.WriteManifestToFile(m, res.BuildManifest); err != nil {
		return err
	}

	name := b.Spec.Flatpak.ID
	if name == "" {
		name = b.Spec.Flatpak.Runtime
	}
	res.SPDXPath = filepath.Join(b.WorkDir, SPDXFile)
	return manifest.WriteSPDXToFile(name, res.Components, res.SPDXPath)
}
