package ocibuild

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/shell"
)

const runtimeMetadataTemplate = `[Runtime]
name=%[1]s
runtime=%[1]s/%[2]s/%[3]s
sdk=%[4]s/%[2]s/%[3]s

[Environment]
LD_LIBRARY_PATH=/app/lib64:/app/lib
GI_TYPELIB_PATH=/app/lib64/girepository-1.0
`

// RuntimeRef is the ostree ref of a runtime build.
func RuntimeRef(runtimeID, arch, version string) string {
	return fmt.Sprintf("runtime/%s/%s/%s", runtimeID, arch, version)
}

// createRuntimeOCI commits the rewritten tarball plus a metadata file to an
// ostree repository and bundles the commit as an OCI runtime image. The
// tarball's owners and modes are already those build-export would set, so
// flatpak build-export is not used.
func (b *Builder) createRuntimeOCI(archive, repo, outfile, arch string) (string, error) {
	log := logger.Logger()
	info := b.Spec.Flatpak

	builddir := filepath.Join(b.WorkDir, "build")
	if err := os.Mkdir(builddir, 0755); err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}

	if _, err := shell.ExecCmd(shell.Join("ostree", "init", "--mode=archive-z2", "--repo", repo), nil); err != nil {
		return "", fmt.Errorf("failed to init ostree repo: %w", err)
	}

	metadata := fmt.Sprintf(runtimeMetadataTemplate, info.Runtime, arch, info.RuntimeVersion, b.Spec.SDKName())
	if err := os.WriteFile(filepath.Join(builddir, "metadata"), []byte(metadata), 0644); err != nil {
		return "", fmt.Errorf("failed to write runtime metadata: %w", err)
	}

	ref := RuntimeRef(info.Runtime, arch, info.RuntimeVersion)
	commit := shell.Join("ostree", "commit",
		"--repo", repo, "--owner-uid=0",
		"--owner-gid=0", "--no-xattrs",
		"--branch", ref,
		"-s", "build of "+ref,
		"--tree=tar="+archive,
		"--tree=dir="+builddir)
	if _, err := shell.ExecCmdWithStream(commit, nil); err != nil {
		return "", fmt.Errorf("failed to commit runtime: %w", err)
	}
	if _, err := shell.ExecCmd(shell.Join("ostree", "summary", "-u", "--repo", repo), nil); err != nil {
		return "", fmt.Errorf("failed to update ostree summary: %w", err)
	}

	bundle := shell.Join("flatpak", "build-bundle", repo, "--oci", "--runtime", outfile, info.Runtime, info.RuntimeVersion)
	if _, err := shell.ExecCmdWithStream(bundle, nil); err != nil {
		return "", fmt.Errorf("failed to build runtime bundle: %w", err)
	}

	log.Infof("created runtime %s", ref)
	return ref, nil
}
