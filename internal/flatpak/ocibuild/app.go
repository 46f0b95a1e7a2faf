package ocibuild

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/desktop"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/shell"
)

const appMetadataTemplate = `[Application]
name=%s
runtime=%s/%s/%s
sdk=%s/%s/%s
`

// AppRef is the ostree ref of an application build.
func AppRef(appID, arch string) string {
	return fmt.Sprintf("app/%s/%s/master", appID, arch)
}

// buildInit lays out a flatpak build directory like flatpak build-init,
// without requiring the runtime and sdk to be installed on the host.
func (b *Builder) buildInit(builddir, arch string) error {
	info := b.Spec.Flatpak
	if err := os.MkdirAll(builddir, 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	metadata := fmt.Sprintf(appMetadataTemplate,
		info.ID,
		info.Runtime, arch, info.RuntimeVersion,
		b.Spec.SDKName(), arch, info.RuntimeVersion)
	if err := os.WriteFile(filepath.Join(builddir, "metadata"), []byte(metadata), 0644); err != nil {
		return fmt.Errorf("failed to write application metadata: %w", err)
	}
	if err := os.Mkdir(filepath.Join(builddir, "files"), 0755); err != nil {
		return fmt.Errorf("failed to create files directory: %w", err)
	}
	return nil
}

// createAppOCI unpacks the rewritten tarball into a build directory, fixes
// up desktop files and exports the result as an OCI application bundle.
func (b *Builder) createAppOCI(archive, repo, outfile, arch string) (string, error) {
	log := logger.Logger()
	info := b.Spec.Flatpak

	builddir := filepath.Join(b.WorkDir, "build")

	if err := b.buildInit(builddir, arch); err != nil {
		return "", err
	}
	if _, err := shell.ExecCmd(shell.Join("tar", "-C", builddir, "-xf", archive), nil); err != nil {
		return "", fmt.Errorf("failed to unpack filesystem: %w", err)
	}
	if err := desktop.UpdateDesktopFiles(info.ID, builddir); err != nil {
		return "", fmt.Errorf("failed to update desktop files: %w", err)
	}

	finish := append([]string{"flatpak", "build-finish"}, info.FinishArgs...)
	finish = append(finish, builddir)
	if _, err := shell.ExecCmd(shell.Join(finish...), nil); err != nil {
		return "", fmt.Errorf("failed to finish build: %w", err)
	}
	if _, err := shell.ExecCmdWithStream(shell.Join("flatpak", "build-export", repo, builddir), nil); err != nil {
		return "", fmt.Errorf("failed to export build: %w", err)
	}
	if _, err := shell.ExecCmdWithStream(shell.Join("flatpak", "build-bundle", repo, "--oci", outfile, info.ID), nil); err != nil {
		return "", fmt.Errorf("failed to build application bundle: %w", err)
	}

	ref := AppRef(info.ID, arch)
	log.Infof("created application %s", ref)
	return ref, nil
}
