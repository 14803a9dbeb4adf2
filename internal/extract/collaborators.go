// Package extract turns raw image files into store.Image records: decode,
// bounded thumbnail, EXIF tags, and hash vectors. The embedding model, the
// perceptual-hash pixel algorithm, and EXIF decoding are external
// collaborators consumed through the interfaces below.
package extract

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Embedder produces the visual hash (embedding) for an image.
// Implementations must be deterministic for identical pixel content and
// return a fixed-length vector.
type Embedder interface {
	Embed(img image.Image) ([]byte, error)
}

// PerceptualHasher produces the content hash (phash) for an image:
// a fixed-length, bit-packed vector robust to minor resize/crop/rotation.
type PerceptualHasher interface {
	Hash(img image.Image) ([]byte, error)
}

// TagReader extracts metadata tags for a file. Best-effort: returns an
// empty map on failure, never an error.
type TagReader interface {
	ReadTags(path string) map[string]string
}

// staticEdge is the downsample edge used by the built-in collaborators.
const staticEdge = 8

// StaticEmbedder is the built-in offline embedder: it downsamples the image
// to an 8x8 grayscale grid and emits one byte per cell. It stands in for a
// neural model when none is wired up; same idea as running a search stack
// with static embeddings instead of a downloaded model.
type StaticEmbedder struct{}

// Embed returns a 64-byte luminance grid.
func (StaticEmbedder) Embed(img image.Image) ([]byte, error) {
	small := imaging.Resize(img, staticEdge, staticEdge, imaging.Lanczos)
	out := make([]byte, 0, staticEdge*staticEdge)
	for y := 0; y < staticEdge; y++ {
		for x := 0; x < staticEdge; x++ {
			out = append(out, luminance(small.At(x, y)))
		}
	}
	return out, nil
}

// StaticHasher is the built-in perceptual hasher: average-threshold over an
// 8x8 grayscale grid, bit-packed to 8 bytes.
type StaticHasher struct{}

// Hash returns an 8-byte average hash.
func (StaticHasher) Hash(img image.Image) ([]byte, error) {
	small := imaging.Resize(img, staticEdge, staticEdge, imaging.Lanczos)

	var cells [staticEdge * staticEdge]byte
	var sum int
	for y := 0; y < staticEdge; y++ {
		for x := 0; x < staticEdge; x++ {
			l := luminance(small.At(x, y))
			cells[y*staticEdge+x] = l
			sum += int(l)
		}
	}
	mean := byte(sum / (staticEdge * staticEdge))

	out := make([]byte, staticEdge)
	for i, c := range cells {
		if c > mean {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

// NoopTagReader returns no tags. Used where EXIF extraction is unavailable
// (in-memory archive entries) or disabled in tests.
type NoopTagReader struct{}

// ReadTags implements TagReader.
func (NoopTagReader) ReadTags(string) map[string]string {
	return map[string]string{}
}

func luminance(c color.Color) byte {
	return color.GrayModel.Convert(c).(color.Gray).Y
}
