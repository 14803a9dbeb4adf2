// Package cmd provides the CLI commands for imagevault.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/imagevault/imagevault/internal/config"
	"github.com/imagevault/imagevault/internal/logging"
	"github.com/imagevault/imagevault/pkg/version"
)

var (
	dataDir        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the imagevault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagevault",
		Short: "Index image collections and search them by metadata and similarity",
		Long: `imagevault crawls watched directories, extracts thumbnails, EXIF tags,
and hash vectors from every image it finds, and stores them in a local
SQLite index. Queries combine metadata filters with visual similarity
ranking against a reference image.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("imagevault version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(),
		"Directory holding the database, config, and lock files")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to the log directory")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDirsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cleanup, err := logging.SetupDefault(debugMode)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Debug("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()))
	}
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
