package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/imagevault/imagevault/internal/crawler"
	verrors "github.com/imagevault/imagevault/internal/errors"
	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

// Completion reports one successfully indexed file.
type Completion struct {
	Filename string
	Path     string
}

// Failure reports one file that could not be indexed.
type Failure struct {
	Path string
	Err  error
}

// Config configures the Supervisor.
type Config struct {
	Store     store.Store
	Extractor *extract.Extractor

	// DataDir holds the cross-process indexing lock file.
	DataDir string

	// Pipeline sizing, passed through to the crawler.
	Workers        int
	PathQueueSize  int
	ImageQueueSize int
	ErrorQueueSize int
}

// Supervisor owns the indexing pipeline lifecycle: Idle, Indexing, Idle.
// Start spawns the crawler and a drain goroutine that persists completed
// records with path dedup; Stop cancels cooperatively and waits.
type Supervisor struct {
	cfg     Config
	tracker *tracker

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	runErr  error

	// Per-run notification streams, recreated on each Start. Both are
	// buffered and lossy: a lagging consumer drops notifications instead
	// of stalling the drain loop.
	completions chan Completion
	failures    chan Failure
}

// New creates a Supervisor.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		tracker: newTracker(),
	}
}

// IsRunning reports whether an indexing run is active.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the current run's progress.
func (s *Supervisor) Status() Snapshot {
	return s.tracker.snapshot()
}

// Completions returns the current run's success stream. The channel closes
// when the run ends. Nil before the first Start.
func (s *Supervisor) Completions() <-chan Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions
}

// Failures returns the current run's failure stream. The channel closes
// when the run ends. Nil before the first Start.
func (s *Supervisor) Failures() <-chan Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Start begins an indexing run over the store's watched directories.
// It is non-blocking and a no-op while a run is already active.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if s.cfg.DataDir != "" {
		if err := os.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
			s.mu.Unlock()
			return verrors.New(verrors.ErrCodeInternal,
				fmt.Sprintf("cannot create data directory %s: %v", s.cfg.DataDir, err), err)
		}
	}

	s.running = true
	s.runErr = nil
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.completions = make(chan Completion, 64)
	s.failures = make(chan Failure, 64)
	s.mu.Unlock()

	s.tracker.begin()
	go s.run(ctx)
	return nil
}

// Stop signals cooperative cancellation and waits for the run to finish.
// In-flight extractions are allowed to complete. No-op when idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Wait blocks until the current run completes and returns its error.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	doneCh := s.doneCh
	s.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.tracker.finish()
		s.mu.Lock()
		s.running = false
		close(s.completions)
		close(s.failures)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.runLocked(ctx); err != nil {
		s.tracker.setError(err.Error())
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
	}
}

// runLocked holds the cross-process lock for the duration of the pipeline.
func (s *Supervisor) runLocked(ctx context.Context) error {
	if s.cfg.DataDir != "" {
		lockPath := filepath.Join(s.cfg.DataDir, "indexing.lock")
		lock := flock.New(lockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return verrors.New(verrors.ErrCodeInternal,
				fmt.Sprintf("cannot acquire indexing lock: %v", err), err)
		}
		if !locked {
			return verrors.New(verrors.ErrCodeInternal,
				"another indexing run holds the lock", nil)
		}
		defer func() {
			_ = lock.Unlock()
			_ = os.Remove(lockPath)
		}()
	}

	globs, err := s.cfg.Store.WatchedDirectories(ctx)
	if err != nil {
		return err
	}
	if len(globs) == 0 {
		slog.Info("no watched directories, nothing to index")
		return nil
	}

	c := crawler.New(crawler.Config{
		Globs:          globs,
		Workers:        s.cfg.Workers,
		PathQueueSize:  s.cfg.PathQueueSize,
		ImageQueueSize: s.cfg.ImageQueueSize,
		ErrorQueueSize: s.cfg.ErrorQueueSize,
		Extractor:      s.cfg.Extractor,
	})

	slog.Info("indexing started",
		slog.Int("directories", len(globs)),
		slog.Int("workers", s.cfg.Workers))

	images, errs := c.Start(ctx)
	s.drain(ctx, c, images, errs)

	snap := s.tracker.snapshot()
	slog.Info("indexing finished",
		slog.Int64("indexed", snap.Indexed),
		slog.Int64("skipped", snap.Skipped),
		slog.Int64("failed", snap.Failed))
	return nil
}

// drain persists crawler output until both channels close. Duplicate paths
// are skipped silently, which makes re-runs idempotent.
func (s *Supervisor) drain(ctx context.Context, c *crawler.Crawler, images <-chan *store.Image, errs <-chan crawler.ItemError) {
	for images != nil || errs != nil {
		s.tracker.setDiscovered(c.Progress().Discovered)

		select {
		case img, ok := <-images:
			if !ok {
				images = nil
				continue
			}
			s.persist(ctx, img)
		case ie, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.tracker.addFailed()
			s.notifyFailure(Failure{Path: ie.Path, Err: ie.Err})
		}
	}
	s.tracker.setDiscovered(c.Progress().Discovered)
}

func (s *Supervisor) persist(ctx context.Context, img *store.Image) {
	exists, err := s.cfg.Store.ExistsByPath(ctx, img.Path)
	if err != nil {
		s.tracker.addFailed()
		s.notifyFailure(Failure{Path: img.Path, Err: err})
		return
	}
	if exists {
		s.tracker.addSkipped()
		return
	}

	if _, err := s.cfg.Store.Insert(ctx, img); err != nil {
		if verrors.IsConflict(err) {
			// Lost a race to another writer. Same outcome as the
			// existence check above.
			s.tracker.addSkipped()
			return
		}
		s.tracker.addFailed()
		s.notifyFailure(Failure{Path: img.Path, Err: err})
		return
	}

	s.tracker.addIndexed()
	select {
	case s.completions <- Completion{Filename: img.Filename, Path: img.Path}:
	default:
		slog.Debug("completion dropped, consumer lagging", slog.String("path", img.Path))
	}
}

func (s *Supervisor) notifyFailure(f Failure) {
	slog.Warn("item not indexed",
		slog.String("path", f.Path),
		slog.String("error", f.Err.Error()))
	select {
	case s.failures <- f:
	default:
	}
}

// HasStaleLock reports whether a previous run left its lock file behind.
func HasStaleLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, "indexing.lock"))
	return err == nil
}
