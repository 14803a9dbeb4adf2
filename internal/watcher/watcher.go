package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imagevault/imagevault/internal/crawler"
	verrors "github.com/imagevault/imagevault/internal/errors"
)

// Trigger starts an indexing run. Satisfied by async.Supervisor.
type Trigger interface {
	Start(ctx context.Context) error
}

// Options configures the watcher.
type Options struct {
	// Debounce is the quiet window before a burst of events triggers a
	// run. Default: 2s.
	Debounce time.Duration
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce == 0 {
		o.Debounce = 2 * time.Second
	}
	return o
}

// Watcher watches the directory roots behind a set of glob patterns and
// triggers indexing runs when supported files appear or change.
type Watcher struct {
	opts      Options
	trigger   Trigger
	debouncer *Debouncer

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopped bool
	doneCh  chan struct{}
}

// New creates a Watcher that fires trigger after debounced file activity.
func New(trigger Trigger, opts Options) *Watcher {
	opts = opts.WithDefaults()
	return &Watcher{
		opts:      opts,
		trigger:   trigger,
		debouncer: NewDebouncer(opts.Debounce),
		doneCh:    make(chan struct{}),
	}
}

// Start resolves each glob to its directory roots, watches them
// recursively, and runs the event loop until Stop or context cancellation.
// Non-blocking.
func (w *Watcher) Start(ctx context.Context, globs []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return verrors.New(verrors.ErrCodeInternal, "cannot create file watcher", err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	watched := 0
	for _, pattern := range globs {
		roots, err := filepath.Glob(pattern)
		if err != nil {
			slog.Warn("bad glob pattern, not watching",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()))
			continue
		}
		for _, root := range roots {
			watched += w.watchTree(fsw, root)
		}
	}
	slog.Info("watching directories", slog.Int("count", watched))

	go w.loop(ctx, fsw)
	return nil
}

// watchTree adds root and every subdirectory to the fsnotify watch set.
func (w *Watcher) watchTree(fsw *fsnotify.Watcher, root string) int {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			slog.Warn("cannot watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		slog.Warn("walk failed",
			slog.String("root", root),
			slog.String("error", err.Error()))
	}
	return added
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.doneCh)
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			slog.Info("file activity settled, triggering index run",
				slog.Int("changed", len(batch)))
			if err := w.trigger.Start(ctx); err != nil {
				slog.Warn("index run not started", slog.String("error", err.Error()))
			}
		}
	}
}

// handleEvent filters raw fsnotify events: new directories join the watch
// set, supported files feed the debouncer, everything else is ignored.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			w.watchTree(fsw, event.Name)
			// A moved-in directory arrives as one create event; index
			// whatever it already contains.
			w.debouncer.Add(event.Name)
		}
		return
	}

	if crawler.Classify(event.Name) == crawler.KindUnsupported {
		return
	}
	w.debouncer.Add(event.Name)
}

// Stop closes the underlying watcher and waits for the loop to exit.
// Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	fsw := w.fsw
	w.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
		<-w.doneCh
	}
}
