package query

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/internal/errors"
	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

// countingEmbedder wraps the static embedder and counts Embed calls.
type countingEmbedder struct {
	calls atomic.Int64
	inner extract.StaticEmbedder
}

func (c *countingEmbedder) Embed(img image.Image) ([]byte, error) {
	c.calls.Add(1)
	return c.inner.Embed(img)
}

func writeRefPNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}
	path := filepath.Join(dir, "reference.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func seedImage(t *testing.T, s store.Store, path string, tags map[string]string, visualHash []byte) *store.Image {
	t.Helper()
	img := &store.Image{
		Filename:    filepath.Base(path),
		Path:        path,
		Width:       64,
		Height:      64,
		Thumbnail:   []byte{0x89, 0x50, 0x4e, 0x47},
		ThumbWidth:  64,
		ThumbHeight: 64,
		Tags:        tags,
		VisualHash:  visualHash,
	}
	_, err := s.Insert(context.Background(), img)
	require.NoError(t, err)
	return img
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	cfg.Store = s
	e, err := New(cfg)
	require.NoError(t, err)
	return e, s
}

func TestSearch_FilterOnly(t *testing.T) {
	e, s := newTestEngine(t, Config{})
	seedImage(t, s, "/pics/beach.png", map[string]string{"Make": "Canon"}, nil)
	seedImage(t, s, "/pics/forest.png", map[string]string{"Make": "Nikon"}, nil)

	results, err := e.Search(context.Background(), "beach")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beach.png", results[0].Filename)
	assert.Nil(t, results[0].Distance)

	results, err = e.Search(context.Background(), "tag:Make:Nikon")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "forest.png", results[0].Filename)
}

func TestSearch_TokensCombineWithAnd(t *testing.T) {
	e, s := newTestEngine(t, Config{})
	seedImage(t, s, "/pics/beach-day.png", map[string]string{"Make": "Canon"}, nil)
	seedImage(t, s, "/pics/beach-night.png", map[string]string{"Make": "Nikon"}, nil)

	results, err := e.Search(context.Background(), "beach tag:Make:Canon")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beach-day.png", results[0].Filename)
}

func TestSearch_EmptyInputPreservesResults(t *testing.T) {
	e, s := newTestEngine(t, Config{})
	seedImage(t, s, "/pics/beach.png", nil, nil)

	first, err := e.Search(context.Background(), "beach")
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := e.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	state := e.State()
	assert.Equal(t, []string{"beach"}, state.Tokens)
}

func TestSearch_MalformedQueryKeepsState(t *testing.T) {
	e, s := newTestEngine(t, Config{})
	seedImage(t, s, "/pics/beach.png", nil, nil)

	_, err := e.Search(context.Background(), "beach")
	require.NoError(t, err)

	_, err = e.Search(context.Background(), `broken "quote`)
	require.Error(t, err)
	assert.True(t, errors.IsMalformedQuery(err))
	assert.Len(t, e.Results(), 1)
}

func TestSearch_SimilarRanksByCosine(t *testing.T) {
	dir := t.TempDir()
	refPath := writeRefPNG(t, dir)

	extractor := extract.New()
	e, s := newTestEngine(t, Config{Extractor: extractor})

	ref, err := extractor.FromFile(refPath)
	require.NoError(t, err)
	require.NotEmpty(t, ref.VisualHash)

	// Identical vector ranks at distance ~0; the inverted vector is
	// anti-parallel and lands past the distance cutoff.
	inverted := make([]byte, len(ref.VisualHash))
	for i, v := range ref.VisualHash {
		inverted[i] = 255 - v
	}
	seedImage(t, s, "/pics/twin.png", nil, append([]byte(nil), ref.VisualHash...))
	seedImage(t, s, "/pics/opposite.png", nil, inverted)
	seedImage(t, s, "/pics/unhashed.png", nil, nil)

	results, err := e.Search(context.Background(), "similar:"+refPath)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "twin.png", results[0].Filename)
	require.NotNil(t, results[0].Distance)
	assert.Less(t, *results[0].Distance, 1e-6)
}

func TestSearch_SimilarCachesReference(t *testing.T) {
	dir := t.TempDir()
	refPath := writeRefPNG(t, dir)

	embedder := &countingEmbedder{}
	extractor := extract.New(extract.WithEmbedder(embedder))
	e, _ := newTestEngine(t, Config{Extractor: extractor})

	_, err := e.Search(context.Background(), "similar:"+refPath)
	require.NoError(t, err)
	require.Equal(t, int64(1), embedder.calls.Load())

	_, err = e.Search(context.Background(), "similar:"+refPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), embedder.calls.Load())

	// The cache key is case-insensitive.
	_, err = e.Search(context.Background(), "similar:"+strings.ToUpper(refPath))
	require.NoError(t, err)
	assert.Equal(t, int64(1), embedder.calls.Load())
}

func TestSearch_BadReference(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	_, err := e.Search(context.Background(), "similar:/nope/missing.png")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBadReference, errors.CodeOf(err))
}

func TestSearch_MaxResultsCapsOutput(t *testing.T) {
	e, s := newTestEngine(t, Config{MaxResults: 2})
	seedImage(t, s, "/pics/a.png", nil, nil)
	seedImage(t, s, "/pics/b.png", nil, nil)
	seedImage(t, s, "/pics/c.png", nil, nil)

	results, err := e.Search(context.Background(), "pics")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_MaxDistanceCutoff(t *testing.T) {
	dir := t.TempDir()
	refPath := writeRefPNG(t, dir)

	extractor := extract.New()
	e, s := newTestEngine(t, Config{Extractor: extractor, MaxDistance: 1e-3})

	ref, err := extractor.FromFile(refPath)
	require.NoError(t, err)

	slightlyOff := append([]byte(nil), ref.VisualHash...)
	slightlyOff[0] ^= 0xFF
	seedImage(t, s, "/pics/twin.png", nil, append([]byte(nil), ref.VisualHash...))
	seedImage(t, s, "/pics/near.png", nil, slightlyOff)

	results, err := e.Search(context.Background(), "similar:"+refPath)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "twin.png", results[0].Filename)
}
