package extract

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Extended decoders beyond the stdlib png/jpeg/gif set.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	verrors "github.com/imagevault/imagevault/internal/errors"
	"github.com/imagevault/imagevault/internal/store"
)

// Extractor builds store.Image records from raw files or in-memory bytes.
type Extractor struct {
	embedder Embedder
	hasher   PerceptualHasher
	tags     TagReader
	maxEdge  int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEmbedder sets the embedding collaborator.
func WithEmbedder(e Embedder) Option { return func(x *Extractor) { x.embedder = e } }

// WithHasher sets the perceptual-hash collaborator.
func WithHasher(h PerceptualHasher) Option { return func(x *Extractor) { x.hasher = h } }

// WithTagReader sets the EXIF collaborator.
func WithTagReader(t TagReader) Option { return func(x *Extractor) { x.tags = t } }

// WithMaxEdge overrides the thumbnail bound (default store.ThumbnailMaxEdge).
func WithMaxEdge(edge int) Option { return func(x *Extractor) { x.maxEdge = edge } }

// New creates an Extractor with the built-in static collaborators, which
// options may replace.
func New(opts ...Option) *Extractor {
	x := &Extractor{
		embedder: StaticEmbedder{},
		hasher:   StaticHasher{},
		tags:     NoopTagReader{},
		maxEdge:  store.ThumbnailMaxEdge,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// FromFile reads path once and builds an unpersisted record (ID 0).
// Decode and hash failures are recoverable per-item errors.
func (x *Extractor) FromFile(path string) (*store.Image, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot canonicalize %s: %v", path, err), err)
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read %s: %v", canonical, err), err)
	}

	img, err := x.build(canonical, filepath.Base(canonical), data)
	if err != nil {
		return nil, err
	}
	img.Tags = x.tags.ReadTags(canonical)
	return img, nil
}

// FromBytes builds a record from in-memory bytes, used for archive entries
// that never touch disk. The caller supplies the synthetic canonical path
// (archive path + entry name); EXIF tags are not extracted.
func (x *Extractor) FromBytes(canonicalPath, filename string, data []byte) (*store.Image, error) {
	img, err := x.build(canonicalPath, filename, data)
	if err != nil {
		return nil, err
	}
	img.Tags = map[string]string{}
	return img, nil
}

func (x *Extractor) build(canonicalPath, filename string, data []byte) (*store.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeDecodeFailed,
			fmt.Sprintf("cannot decode %s: %v", canonicalPath, err), err)
	}

	bounds := decoded.Bounds()

	thumb := imaging.Fit(decoded, x.maxEdge, x.maxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, verrors.New(verrors.ErrCodeDecodeFailed,
			fmt.Sprintf("cannot encode thumbnail for %s: %v", canonicalPath, err), err)
	}

	visual, err := x.embedder.Embed(decoded)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeHashFailed,
			fmt.Sprintf("cannot embed %s: %v", canonicalPath, err), err)
	}
	content, err := x.hasher.Hash(decoded)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeHashFailed,
			fmt.Sprintf("cannot hash %s: %v", canonicalPath, err), err)
	}

	return &store.Image{
		Filename:    filename,
		Path:        canonicalPath,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Thumbnail:   buf.Bytes(),
		ThumbWidth:  thumb.Bounds().Dx(),
		ThumbHeight: thumb.Bounds().Dy(),
		ContentHash: content,
		VisualHash:  visual,
	}, nil
}

// CanonicalPath converts a path into its absolute, symlink-resolved form.
// Every place that stores or compares a path as a string goes through this
// one function.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
