package main

import (
	"fmt"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/flatpak/ocibuild"
	"github.com/open-edge-platform/flatpak-composer/internal/ospackage/rpmutils"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createCheckCommand creates the check subcommand
func createCheckCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check [flags] SPEC_FILE MANIFEST_FILE",
		Short: "Check a package manifest against the module compose",
		Long: `Check parses an rpm query manifest and verifies that every installed package
is allowed: for a runtime the set must equal the runtime profile, for an
application every package must come from the runtime or from a module built
against it.`,
		Args:              cobra.ExactArgs(2),
		RunE:              executeCheck,
		ValidArgsFunction: specFileCompletion,
	}
	return checkCmd
}

// executeCheck handles the check command logic
func executeCheck(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	spec, err := config.LoadBuildSpec(args[0], true)
	if err != nil {
		return fmt.Errorf("build description validation failed: %w", err)
	}

	b := ocibuild.NewBuilder(spec, config.Global())
	all, image, err := b.Validate(args[1])
	if err != nil {
		return err
	}
	rpmutils.SortComponents(image)

	log.Infof("%d installed packages, %d image components", len(all), len(image))
	for _, c := range image {
		fmt.Fprintln(cmd.OutOrStdout(), c.Filename())
	}
	return nil
}
