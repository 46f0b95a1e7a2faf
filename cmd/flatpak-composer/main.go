package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/flatpak-composer/internal/config"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global command flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

func main() {
	root := createRootCommand()
	if err := root.Execute(); err != nil {
		logger.Logger().Errorf("%v", err)
		os.Exit(1)
	}
}

// createRootCommand builds the command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flatpak-composer",
		Short: "Build flatpak OCI bundles from container filesystem exports",
		Long: `flatpak-composer turns the exported filesystem of a flatpak build container
into an OCI flatpak runtime or application bundle. The installed packages are
checked against the module compose described in the build description before
the bundle is assembled with ostree and flatpak.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to the global config.yml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging and extra output")

	rootCmd.AddCommand(createExportCommand())
	rootCmd.AddCommand(createCheckCommand())
	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createVerifyCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// resolveRequestedLogLevel returns the level asked for on the command line:
// --log-level wins, then --verbose means debug. Empty leaves the config
// level in place.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if boolFlagSet(cmd.Flags(), "verbose") {
		return "debug"
	}
	return ""
}

func boolFlagSet(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed && f.Value.String() == "true"
}

// initRuntime loads the global config and starts the logger.
func initRuntime(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadGlobalConfig(path)
	if err != nil {
		return err
	}
	if lvl := resolveRequestedLogLevel(cmd); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if _, err := logger.Init(config.NewConfigHelpers(cfg).LogLevel()); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	config.SetGlobal(cfg)
	logger.Logger().Debugf("log level %s, work dir %s", logger.Level(), cfg.WorkDir)
	return nil
}

// attachLoggingHooks installs initRuntime on every subcommand
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		if cmd.PersistentPreRunE == nil {
			cmd.PersistentPreRunE = initRuntime
		}
	}
}

// specFileCompletion offers YAML files for build description arguments
func specFileCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	matches, _ := filepath.Glob(toComplete + "*")
	var files []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".yml") || strings.HasSuffix(m, ".yaml") {
			files = append(files, m)
		}
	}
	return files, cobra.ShellCompDirectiveFilterDirs
}

// openSource opens the filesystem export to read; "" and "-" mean stdin.
func openSource(path string) (*os.File, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening filesystem export: %w", err)
	}
	return f, func() { f.Close() }, nil
}
