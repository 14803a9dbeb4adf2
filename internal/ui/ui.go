// Package ui provides terminal output for indexing progress and search
// results.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressEvent represents an indexing progress update.
type ProgressEvent struct {
	Discovered int64
	Indexed    int64
	Skipped    int64
	Failed     int64
	Progress   float64
	Current    string
}

// ErrorEvent represents a per-item failure during indexing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats contains final indexing statistics.
type CompletionStats struct {
	Indexed  int64
	Skipped  int64
	Failed   int64
	Duration time.Duration
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// UpdateProgress updates the progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to the display.
	AddError(event ErrorEvent)

	// Complete prints the final summary.
	Complete(stats CompletionStats)
}

// Config configures the renderer.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewRenderer creates a renderer for the given output. Color output is
// used only on an interactive terminal with NO_COLOR unset.
func NewRenderer(cfg Config) Renderer {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if !cfg.NoColor {
		cfg.NoColor = !IsTTY(cfg.Output) || DetectNoColor() || DetectCI()
	}
	return NewPlainRenderer(cfg)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
