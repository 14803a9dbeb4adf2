package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newDirsCmd creates the dirs command group.
func newDirsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirs",
		Short: "Manage watched directories",
		Long: `Manage the glob patterns that indexing runs crawl. Patterns are
stored in the index database; each pattern's matches are walked
recursively.`,
	}

	cmd.AddCommand(newDirsAddCmd())
	cmd.AddCommand(newDirsRemoveCmd())
	cmd.AddCommand(newDirsListCmd())

	return cmd
}

func newDirsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <glob>...",
		Short: "Add watched directory patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			for _, pattern := range args {
				// Relative patterns are pinned to the invocation
				// directory, otherwise a later run from elsewhere would
				// crawl different trees.
				if !filepath.IsAbs(pattern) {
					abs, err := filepath.Abs(pattern)
					if err == nil {
						pattern = abs
					}
				}
				if err := e.store.AddWatchedDirectory(cmd.Context(), pattern); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", pattern)
			}
			return nil
		},
	}
}

func newDirsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <glob>...",
		Short: "Remove watched directory patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			for _, pattern := range args {
				if err := e.store.RemoveWatchedDirectory(cmd.Context(), pattern); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", pattern)
			}
			return nil
		},
	}
}

func newDirsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched directory patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			globs, err := e.store.WatchedDirectories(cmd.Context())
			if err != nil {
				return err
			}
			if len(globs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no watched directories")
				return nil
			}
			for _, g := range globs {
				fmt.Fprintln(cmd.OutOrStdout(), g)
			}
			return nil
		},
	}
}
