// Package store provides durable keyed storage of indexed images (SQLite),
// the watched-directory registry, and distance-ranked query execution.
// This is the persistence layer for all indexed data.
package store

import (
	"context"
)

// ThumbnailMaxEdge is the fixed bound on a stored thumbnail's longest edge.
const ThumbnailMaxEdge = 256

// Image represents one indexed image. Identity fields are set once at
// creation by the extractor; ID is assigned by the store on insert and is
// zero before that. An Image is never mutated after insert: re-indexing is
// a delete followed by a reinsert.
type Image struct {
	ID       int64  // Assigned on insert; 0 before.
	Filename string // Base name of the source file.
	Path     string // Canonical absolute path; the uniqueness key.

	// Source resolution in pixels.
	Width  int
	Height int

	// Thumbnail is PNG-encoded, bounded to ThumbnailMaxEdge, with its own
	// resolution independent of the source.
	Thumbnail   []byte
	ThumbWidth  int
	ThumbHeight int

	// Tags maps tag name to value. Keys are unique per image.
	Tags map[string]string

	// ContentHash is the bit-packed perceptual hash (optional).
	ContentHash []byte
	// VisualHash is the embedding vector (optional). Both hash kinds use
	// the same vector length within one store.
	VisualHash []byte

	// Distance is transient: set only on records returned from a
	// similarity query, never persisted.
	Distance *float64
}

// Field identifies a searchable column for substring matching.
type Field int

const (
	// FieldFilename matches against the image's base filename.
	FieldFilename Field = iota
	// FieldPath matches against the canonical path.
	FieldPath
	// FieldTagName matches against any tag name of the image.
	FieldTagName
	// FieldTagValue matches against any tag value of the image.
	FieldTagValue
)

// Match is a single substring condition on one field.
type Match struct {
	Field     Field
	Substring string
}

// TagPair requires a tag name and value substring to match the same tag row.
type TagPair struct {
	Name  string
	Value string
}

// Clause is one token's predicate: either an OR-group of field matches or a
// joint tag name+value pair.
type Clause struct {
	Any []Match
	Tag *TagPair
}

// Filter is the AND of its clauses. An empty filter matches everything.
type Filter []Clause

// RankSpec orders results ascending by the named distance function between
// the reference vector and each row's visual hash, excluding rows beyond
// MaxDistance. Rows without a visual hash are excluded from ranked scans.
type RankSpec struct {
	// Function is a registered distance function name
	// (hamming_distance, byte_distance, cosine_distance).
	Function string
	// Reference is the query vector.
	Reference []byte
	// MaxDistance excludes rows whose computed distance exceeds it.
	MaxDistance float64
}

// Store is the narrow interface over the persistence backend. It exists so
// the query engine and supervisor can be tested against a recording double.
type Store interface {
	// Insert persists img and returns the assigned id. Fails with a
	// duplicate-path conflict if the canonical path already exists. Base
	// row, tag rows, and hash rows commit atomically.
	Insert(ctx context.Context, img *Image) (int64, error)

	// ExistsByPath reports whether a canonical path is already indexed.
	ExistsByPath(ctx context.Context, path string) (bool, error)

	// Find executes a filtered, optionally distance-ranked scan. Ranked
	// results are ascending by distance with ties broken by insertion id.
	Find(ctx context.Context, filter Filter, rank *RankSpec, limit int) ([]*Image, error)

	// DeleteImage removes an image; tag and hash rows cascade.
	DeleteImage(ctx context.Context, id int64) error

	// Count returns the number of indexed images.
	Count(ctx context.Context) (int, error)

	// Watched-directory registry. The list is cached in memory and the
	// cache is invalidated on add/remove.
	AddWatchedDirectory(ctx context.Context, glob string) error
	RemoveWatchedDirectory(ctx context.Context, glob string) error
	WatchedDirectories(ctx context.Context) ([]string, error)

	Close() error
}
