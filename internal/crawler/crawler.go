package crawler

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	verrors "github.com/imagevault/imagevault/internal/errors"
	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

// Config configures one crawl.
type Config struct {
	// Globs are the watched-directory patterns. Each is expanded
	// recursively: the pattern names one or more root directories and
	// every file below them is considered.
	Globs []string

	// Workers is the extraction worker count. Zero means NumCPU.
	Workers int

	// PathQueueSize bounds the discovery-to-extraction queue (the
	// pipeline's primary backpressure point).
	PathQueueSize int

	// ImageQueueSize bounds the extraction-to-drain queue.
	ImageQueueSize int

	// ErrorQueueSize bounds the side error channel.
	ErrorQueueSize int

	// Extractor builds records. Required.
	Extractor *extract.Extractor
}

// Crawler runs the discovery + extraction pipeline.
type Crawler struct {
	cfg      Config
	progress Progress
}

// New creates a Crawler, applying defaults for zero config values.
func New(cfg Config) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PathQueueSize <= 0 {
		cfg.PathQueueSize = 256
	}
	if cfg.ImageQueueSize <= 0 {
		cfg.ImageQueueSize = 64
	}
	if cfg.ErrorQueueSize <= 0 {
		cfg.ErrorQueueSize = 128
	}
	return &Crawler{cfg: cfg}
}

// Progress returns a snapshot of the pipeline counters.
func (c *Crawler) Progress() ProgressSnapshot {
	return c.progress.Snapshot()
}

// Start launches discovery and the worker pool. It returns the record
// channel and the side error channel. The record channel closes when
// discovery has finished and every in-flight extraction is done; the error
// channel closes after that. Cancellation is cooperative: cancelling ctx
// stops discovery and the workers between items, but an in-progress
// decode/hash call is allowed to finish.
func (c *Crawler) Start(ctx context.Context) (<-chan *store.Image, <-chan ItemError) {
	paths := make(chan string, c.cfg.PathQueueSize)
	images := make(chan *store.Image, c.cfg.ImageQueueSize)
	errs := make(chan ItemError, c.cfg.ErrorQueueSize)

	// Discovery task.
	go func() {
		defer close(paths)
		for _, pattern := range c.cfg.Globs {
			c.discover(ctx, pattern, paths, errs)
		}
	}()

	// Worker pool. Workers stop pulling when the path queue closes.
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			for path := range paths {
				c.processPath(gctx, path, images, errs)
				if gctx.Err() != nil {
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(images)
		close(errs)
	}()

	return images, errs
}

// discover expands one glob pattern recursively and queues supported
// entries. Unsupported entries are dropped without being queued.
func (c *Crawler) discover(ctx context.Context, pattern string, paths chan<- string, errs chan<- ItemError) {
	roots, err := filepath.Glob(pattern)
	if err != nil {
		c.reportError(ctx, errs, pattern, verrors.New(verrors.ErrCodeFileNotFound,
			fmt.Sprintf("bad glob pattern %q: %v", pattern, err), err))
		return
	}
	if len(roots) == 0 {
		slog.Debug("glob matched nothing", slog.String("pattern", pattern))
		return
	}

	for _, root := range roots {
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				slog.Warn("cannot visit path",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if Classify(path) == KindUnsupported {
				return nil
			}

			c.progress.discovered.Add(1)
			select {
			case paths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if walkErr != nil && walkErr != ctx.Err() {
			slog.Warn("walk aborted",
				slog.String("root", root),
				slog.String("error", walkErr.Error()))
		}
	}
}

// processPath extracts one queued path: a single image file, or an archive
// whose valid entries are decoded from memory.
func (c *Crawler) processPath(ctx context.Context, path string, images chan<- *store.Image, errs chan<- ItemError) {
	if Classify(path) == KindArchive {
		c.processArchive(ctx, path, images, errs)
		return
	}

	img, err := c.cfg.Extractor.FromFile(path)
	if err != nil {
		c.progress.failed.Add(1)
		c.reportError(ctx, errs, path, err)
		return
	}

	select {
	case images <- img:
		c.progress.completed.Add(1)
	case <-ctx.Done():
	}
}

// processArchive feeds each supported zip entry's decompressed bytes
// straight to the extractor. The synthetic canonical path is
// "<archive>!<entry>", which keeps entries unique across archives.
func (c *Crawler) processArchive(ctx context.Context, path string, images chan<- *store.Image, errs chan<- ItemError) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		c.progress.failed.Add(1)
		c.reportError(ctx, errs, path, verrors.New(verrors.ErrCodeArchiveFailed,
			fmt.Sprintf("cannot open archive %s: %v", path, err), err))
		return
	}
	defer func() { _ = reader.Close() }()

	// The archive itself counted as one discovered item; it resolves once
	// its entries are queued in its place.
	c.progress.completed.Add(1)

	for _, entry := range reader.File {
		if ctx.Err() != nil {
			return
		}
		if entry.FileInfo().IsDir() || Classify(entry.Name) != KindImage {
			continue
		}

		entryPath := path + "!" + entry.Name
		c.progress.discovered.Add(1)

		data, err := readZipEntry(entry)
		if err != nil {
			c.progress.failed.Add(1)
			c.reportError(ctx, errs, entryPath, verrors.New(verrors.ErrCodeArchiveFailed,
				fmt.Sprintf("cannot read archive entry %s: %v", entryPath, err), err))
			continue
		}

		img, err := c.cfg.Extractor.FromBytes(entryPath, filepath.Base(entry.Name), data)
		if err != nil {
			c.progress.failed.Add(1)
			c.reportError(ctx, errs, entryPath, err)
			continue
		}

		select {
		case images <- img:
			c.progress.completed.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// reportError delivers an item error without blocking forever on a
// cancelled pipeline.
func (c *Crawler) reportError(ctx context.Context, errs chan<- ItemError, path string, err error) {
	slog.Debug("item failed",
		slog.String("path", path),
		slog.String("error", err.Error()))
	select {
	case errs <- ItemError{Path: path, Err: err}:
	case <-ctx.Done():
	}
}
