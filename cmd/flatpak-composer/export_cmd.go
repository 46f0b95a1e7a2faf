package main

import (
	"fmt"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/ocibuild"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/spf13/cobra"
)

var buildWorkDir string

// createExportCommand creates the export subcommand
func createExportCommand() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export [flags] SPEC_FILE [EXPORT_TAR]",
		Short: "Rewrite a container filesystem export into a flatpak tree",
		Long: `Export reads the tar stream of a flatpak build container (from EXPORT_TAR
or stdin), keeps the files that belong in the flatpak, normalizes their
ownership and modes and writes the result as a compressed tarball together
with the package manifest found in the export.`,
		Args:              cobra.RangeArgs(1, 2),
		RunE:              executeExport,
		ValidArgsFunction: specFileCompletion,
	}
	exportCmd.Flags().StringVarP(&buildWorkDir, "workdir", "w", "",
		"Directory receiving the artifacts (default: a new directory under work_dir)")
	return exportCmd
}

func sourceArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

// executeExport handles the export command logic
func executeExport(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	spec, err := config.LoadBuildSpec(args[0], false)
	if err != nil {
		return fmt.Errorf("build description validation failed: %w", err)
	}
	src, closeSrc, err := openSource(sourceArg(args))
	if err != nil {
		return err
	}
	defer closeSrc()

	b := ocibuild.NewBuilder(spec, config.Global())
	b.WorkDir = buildWorkDir
	res, err := b.Export(src)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	log.Infof("%s export: %d entries written, %d dropped", spec.Mode(), res.Stats.Written, res.Stats.Dropped)
	fmt.Fprintln(cmd.OutOrStdout(), res.ArchivePath)
	if res.ManifestPath != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.ManifestPath)
	} else {
		log.Warnf("no package manifest found in the export")
	}
	return nil
}
