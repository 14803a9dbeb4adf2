package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imagevault/imagevault/internal/async"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			count, err := e.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			globs, err := e.store.WatchedDirectories(cmd.Context())
			if err != nil {
				return err
			}
			staleLock := async.HasStaleLock(dataDir)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"images":              count,
					"watched_directories": globs,
					"database":            e.cfg.Storage.Path,
					"stale_lock":          staleLock,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database:  %s\n", e.cfg.Storage.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "Images:    %d\n", count)
			fmt.Fprintf(cmd.OutOrStdout(), "Watched:   %d pattern(s)\n", len(globs))
			for _, g := range globs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", g)
			}
			if staleLock {
				fmt.Fprintln(cmd.OutOrStdout(), "Warning: a previous indexing run left its lock file behind")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}
