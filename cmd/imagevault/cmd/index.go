package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imagevault/imagevault/internal/async"
	"github.com/imagevault/imagevault/internal/ui"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var noColor bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Crawl watched directories and index new images",
		Long: `Crawl every watched directory, extract thumbnails, tags, and hash
vectors from images that are not yet indexed, and store them. Already
indexed paths are skipped, so re-running is cheap and idempotent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			sup := async.New(async.Config{
				Store:          e.store,
				Extractor:      e.extractor(),
				DataDir:        dataDir,
				Workers:        e.cfg.Pipeline.Workers,
				PathQueueSize:  e.cfg.Pipeline.PathQueueSize,
				ImageQueueSize: e.cfg.Pipeline.ImageQueueSize,
				ErrorQueueSize: e.cfg.Pipeline.ErrorQueueSize,
			})

			var renderer ui.Renderer
			if !quiet {
				renderer = ui.NewRenderer(ui.Config{Output: cmd.OutOrStdout(), NoColor: noColor})
			}

			start := time.Now()
			if err := sup.Start(cmd.Context()); err != nil {
				return err
			}

			failures := sup.Failures()
			completions := sup.Completions()
			done := make(chan struct{})
			go func() {
				defer close(done)
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for completions != nil || failures != nil {
					select {
					case _, ok := <-completions:
						if !ok {
							completions = nil
							continue
						}
					case f, ok := <-failures:
						if !ok {
							failures = nil
							continue
						}
						if renderer != nil {
							renderer.AddError(ui.ErrorEvent{File: f.Path, Err: f.Err})
						}
					case <-ticker.C:
						if renderer != nil {
							snap := sup.Status()
							renderer.UpdateProgress(ui.ProgressEvent{
								Discovered: snap.Discovered,
								Indexed:    snap.Indexed,
								Skipped:    snap.Skipped,
								Failed:     snap.Failed,
								Progress:   snap.Progress,
							})
						}
					}
				}
			}()

			err = sup.Wait()
			<-done
			if err != nil {
				return err
			}

			snap := sup.Status()
			if renderer != nil {
				renderer.Complete(ui.CompletionStats{
					Indexed:  snap.Indexed,
					Skipped:  snap.Skipped,
					Failed:   snap.Failed,
					Duration: time.Since(start),
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d indexed, %d skipped, %d failed\n",
					snap.Indexed, snap.Skipped, snap.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}
