package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress output, suitable for both
// terminals and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor),
	}
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("[%3.0f%%] %d indexed, %d skipped, %d failed",
		event.Progress*100, event.Indexed, event.Skipped, event.Failed)
	if event.Current != "" {
		line += " - " + event.Current
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Label.Render(line))
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	style := r.styles.Error
	prefix := "ERROR"
	if event.IsWarn {
		style = r.styles.Warning
		prefix = "WARN"
	}

	if event.File != "" {
		_, _ = fmt.Fprintln(r.out, style.Render(fmt.Sprintf("%s: %s: %v", prefix, event.File, event.Err)))
	} else {
		_, _ = fmt.Fprintln(r.out, style.Render(fmt.Sprintf("%s: %v", prefix, event.Err)))
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("Done: %d indexed, %d skipped in %s",
		stats.Indexed, stats.Skipped, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		line += fmt.Sprintf(" (%d failed)", stats.Failed)
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Success.Render(line))
}
