package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/imagevault/imagevault/internal/store"
)

// WriteResults prints a search result set, one image per line with an
// optional tag block. Distance appears only on ranked results.
func WriteResults(w io.Writer, results []*store.Image, noColor bool, showTags bool) {
	styles := GetStyles(noColor)

	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, styles.Dim.Render("no results"))
		return
	}

	for i, img := range results {
		line := fmt.Sprintf("%3d. %s", i+1, styles.Header.Render(img.Filename))
		line += "  " + styles.Label.Render(fmt.Sprintf("%dx%d", img.Width, img.Height))
		if img.Distance != nil {
			line += "  " + styles.Distance.Render(fmt.Sprintf("distance %.4f", *img.Distance))
		}
		_, _ = fmt.Fprintln(w, line)
		_, _ = fmt.Fprintln(w, "     "+styles.Dim.Render(img.Path))

		if showTags && len(img.Tags) > 0 {
			names := make([]string, 0, len(img.Tags))
			for name := range img.Tags {
				names = append(names, name)
			}
			sort.Strings(names)
			pairs := make([]string, 0, len(names))
			for _, name := range names {
				pairs = append(pairs, name+"="+img.Tags[name])
			}
			_, _ = fmt.Fprintln(w, "     "+styles.Label.Render(strings.Join(pairs, "  ")))
		}
	}
	_, _ = fmt.Fprintln(w, styles.Dim.Render(fmt.Sprintf("%d result(s)", len(results))))
}
