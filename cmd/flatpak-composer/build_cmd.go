package main

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/ocibuild"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags] SPEC_FILE [EXPORT_TAR]",
		Short: "Build an OCI flatpak bundle from a container filesystem export",
		Long: `Build rewrites the container filesystem export (from EXPORT_TAR or stdin),
validates the installed packages against the module compose and assembles
an OCI runtime or application bundle. The OCI directory is also written as
a tarball and signed when a signing key is configured.`,
		Args:              cobra.RangeArgs(1, 2),
		RunE:              executeBuild,
		ValidArgsFunction: specFileCompletion,
	}
	buildCmd.Flags().StringVarP(&buildWorkDir, "workdir", "w", "",
		"Directory receiving the artifacts (default: a new directory under work_dir)")
	return buildCmd
}

// executeBuild handles the build command logic
func executeBuild(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	spec, err := config.LoadBuildSpec(args[0], true)
	if err != nil {
		return fmt.Errorf("build description validation failed: %w", err)
	}
	if missing := ocibuild.MissingTools(spec.Mode()); len(missing) > 0 {
		log.Warnf("not found on this host: %s", strings.Join(missing, ", "))
	}

	src, closeSrc, err := openSource(sourceArg(args))
	if err != nil {
		return err
	}
	defer closeSrc()

	b := ocibuild.NewBuilder(spec, config.Global())
	b.WorkDir = buildWorkDir
	res, err := b.Build(src)
	if err != nil {
		if res != nil && res.ArchivePath != "" {
			log.Infof("filesystem tarball kept at %s", res.ArchivePath)
		}
		return fmt.Errorf("build failed: %w", err)
	}

	log.Infof("built %s", res.Ref)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ref: %s\n", res.Ref)
	for _, img := range res.Images {
		fmt.Fprintf(out, "%s: %s (%d bytes)\n", img.Type, img.Path, img.SizeBytes)
	}
	if res.SignaturePath != "" {
		fmt.Fprintf(out, "signature: %s\n", res.SignaturePath)
	}
	fmt.Fprintf(out, "manifest: %s\n", res.BuildManifest)
	return nil
}
