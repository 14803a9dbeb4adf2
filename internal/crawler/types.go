// Package crawler discovers image files under a set of directory globs and
// runs the extraction worker pool. Discovery, extraction workers, and the
// caller's drain loop communicate only over bounded channels: when
// extraction falls behind discovery, the path queue fills and discovery
// stalls instead of growing memory.
package crawler

import (
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Kind classifies a discovered filesystem entry.
type Kind int

const (
	// KindUnsupported entries are dropped at discovery, never queued.
	KindUnsupported Kind = iota
	// KindImage entries go onto the work queue.
	KindImage
	// KindArchive entries are expanded in place; valid inner entries are
	// decoded from memory without touching disk again.
	KindArchive
)

// imageExts is the supported image extension set.
var imageExts = map[string]struct{}{
	".png": {}, ".bmp": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".tiff": {}, ".pnm": {}, ".webp": {}, ".ico": {}, ".tga": {}, ".exr": {},
}

// archiveExts is the supported archive extension set.
var archiveExts = map[string]struct{}{
	".zip": {},
}

// Classify returns the Kind of a path based on its extension.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExts[ext]; ok {
		return KindImage
	}
	if _, ok := archiveExts[ext]; ok {
		return KindArchive
	}
	return KindUnsupported
}

// ItemError reports one failed item on the side error channel. Per-item
// failures never unwind the pipeline.
type ItemError struct {
	Path string
	Err  error
}

// Progress tracks pipeline counters. All fields are atomics; a Snapshot is
// safe to read from any goroutine.
type Progress struct {
	discovered atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
}

// ProgressSnapshot is an immutable view of the counters.
type ProgressSnapshot struct {
	Discovered int64
	Completed  int64
	Failed     int64
	Pending    int64
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	d := p.discovered.Load()
	c := p.completed.Load()
	f := p.failed.Load()
	return ProgressSnapshot{
		Discovered: d,
		Completed:  c,
		Failed:     f,
		Pending:    d - c - f,
	}
}
