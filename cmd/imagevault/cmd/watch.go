package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/imagevault/imagevault/internal/async"
	"github.com/imagevault/imagevault/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var initialRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch directories and re-index on changes",
		Long: `Run until interrupted, watching every watched directory root for new
or modified images. Changes are debounced and trigger an incremental
indexing run; already indexed paths are skipped.`,
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
				return fmt.Errorf("no watched directories; add one with 'imagevault dirs add'")
			}

			sup := async.New(async.Config{
				Store:          e.store,
				Extractor:      e.extractor(),
				DataDir:        dataDir,
				Workers:        e.cfg.Pipeline.Workers,
				PathQueueSize:  e.cfg.Pipeline.PathQueueSize,
				ImageQueueSize: e.cfg.Pipeline.ImageQueueSize,
				ErrorQueueSize: e.cfg.Pipeline.ErrorQueueSize,
			})

			if initialRun {
				if err := sup.Start(cmd.Context()); err != nil {
					return err
				}
				if err := sup.Wait(); err != nil {
					return err
				}
				snap := sup.Status()
				fmt.Fprintf(cmd.OutOrStdout(), "initial run: %d indexed, %d skipped\n",
					snap.Indexed, snap.Skipped)
			}

			w := watcher.New(sup, watcher.Options{Debounce: e.cfg.Watch.Debounce.Std()})
			if err := w.Start(cmd.Context(), globs); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %d pattern(s), press Ctrl-C to stop\n", len(globs))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-cmd.Context().Done():
			}

			sup.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&initialRun, "initial-run", true, "Run a full index pass before watching")

	return cmd
}
