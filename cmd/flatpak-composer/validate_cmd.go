package main

import (
	"fmt"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [flags] SPEC_FILE",
		Short: "Validate a flatpak build description",
		Long: `Validate a flatpak build description against the schema without building it.
The file must be in YAML format. Module rpm_dir entries are read so that
missing or corrupt rpms are reported before a build starts.`,
		Args:              cobra.ExactArgs(1),
		RunE:              executeValidate,
		ValidArgsFunction: specFileCompletion,
	}

	return validateCmd
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	specFile := args[0]

	log.Infof("validating build description: %s", specFile)

	spec, err := config.LoadBuildSpec(specFile, true)
	if err != nil {
		return fmt.Errorf("build description validation failed: %w", err)
	}

	log.Infof("build description %s is valid", specFile)
	if spec.Flatpak.ID != "" {
		log.Infof("Application: %s", spec.Flatpak.ID)
	}
	log.Infof("Runtime: %s/%s (%s)", spec.Flatpak.Runtime, spec.Flatpak.RuntimeVersion, spec.Mode())

	if verbose {
		for _, m := range spec.Compose.Modules {
			log.Infof("  module %s: %d profiles, %d rpms", m.Name, len(m.Profiles), len(m.RPMs))
		}
	}
	return nil
}
