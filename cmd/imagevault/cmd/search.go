package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/imagevault/imagevault/internal/query"
	"github.com/imagevault/imagevault/internal/ui"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var noColor bool
	var showTags bool
	var limit int
	var maxDistance float64

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search indexed images. Terms combine with AND:

  beach sunset            full-text match on filename, path, or tag value
  filename:.png           substring match on filename
  tag:Make:Canon          tag name and value must match on the same tag
  tag:GPS                 tag name or value contains GPS
  all:2024                same as a bare term
  similar:/path/ref.png   rank results by visual similarity to an image

Quote terms containing spaces: tag:Artist:"Jane Doe".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if limit <= 0 {
				limit = e.cfg.Search.MaxResults
			}
			if maxDistance <= 0 {
				maxDistance = e.cfg.Search.MaxDistance
			}

			engine, err := query.New(query.Config{
				Store:              e.store,
				Extractor:          e.extractor(),
				MaxResults:         limit,
				MaxDistance:        maxDistance,
				ReferenceCacheSize: e.cfg.Search.ReferenceCacheSize,
			})
			if err != nil {
				return err
			}

			results, err := engine.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if !noColor {
				noColor = !ui.IsTTY(cmd.OutOrStdout()) || ui.DetectNoColor()
			}
			ui.WriteResults(cmd.OutOrStdout(), results, noColor, showTags)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&showTags, "tags", "t", false, "Show tags for each result")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Similarity distance cutoff (default from config)")

	return cmd
}
