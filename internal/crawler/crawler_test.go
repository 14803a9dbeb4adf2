package crawler

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 11), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// drain collects everything the crawler produces.
func drain(t *testing.T, c *Crawler) ([]*store.Image, []ItemError) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	images, errs := c.Start(ctx)

	var records []*store.Image
	var failures []ItemError
	for images != nil || errs != nil {
		select {
		case img, ok := <-images:
			if !ok {
				images = nil
				continue
			}
			records = append(records, img)
		case ie, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			failures = append(failures, ie)
		}
	}
	return records, failures
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"photo.png", KindImage},
		{"photo.JPG", KindImage},
		{"scan.tiff", KindImage},
		{"bundle.zip", KindArchive},
		{"notes.txt", KindUnsupported},
		{"archive.tar.gz", KindUnsupported},
		{"noext", KindUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.path), tt.path)
	}
}

func TestCrawl_SkipsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	pngData := encodeTestPNG(t, 16, 16)

	supported := []string{"a.png", "b.jpg", "sub/c.jpeg", "sub/d.bmp", "sub/deep/e.gif"}
	for _, name := range supported {
		writeFile(t, filepath.Join(dir, name), pngData)
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("not an image"))
	writeFile(t, filepath.Join(dir, "sub/data.json"), []byte("{}"))

	c := New(Config{
		Globs:     []string{dir},
		Workers:   2,
		Extractor: extract.New(),
	})
	records, failures := drain(t, c)

	require.Empty(t, failures)
	require.Len(t, records, 5)
	for _, rec := range records {
		assert.NotEmpty(t, rec.Thumbnail)
		assert.NotEmpty(t, rec.VisualHash)
	}

	snap := c.Progress()
	assert.Equal(t, int64(5), snap.Discovered)
	assert.Equal(t, int64(5), snap.Completed)
	assert.Equal(t, int64(0), snap.Failed)
}

func TestCrawl_ExpandsArchives(t *testing.T) {
	dir := t.TempDir()
	pngData := encodeTestPNG(t, 16, 16)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"inner/one.png", "two.png"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(pngData)
		require.NoError(t, err)
	}
	w, err := zw.Create("broken.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("definitely not a png"))
	require.NoError(t, err)
	readme, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = readme.Write([]byte("ignore me"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	archivePath := filepath.Join(dir, "bundle.zip")
	writeFile(t, archivePath, buf.Bytes())

	c := New(Config{
		Globs:     []string{dir},
		Workers:   1,
		Extractor: extract.New(),
	})
	records, failures := drain(t, c)

	require.Len(t, records, 2)
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		paths = append(paths, rec.Path)
	}
	assert.Contains(t, paths, archivePath+"!inner/one.png")
	assert.Contains(t, paths, archivePath+"!two.png")

	require.Len(t, failures, 1)
	assert.Equal(t, archivePath+"!broken.png", failures[0].Path)
}

func TestCrawl_CorruptFileIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.png"), encodeTestPNG(t, 16, 16))
	writeFile(t, filepath.Join(dir, "bad.png"), []byte("garbage"))

	c := New(Config{
		Globs:     []string{dir},
		Workers:   2,
		Extractor: extract.New(),
	})
	records, failures := drain(t, c)

	require.Len(t, records, 1)
	assert.Equal(t, "good.png", records[0].Filename)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Path, "bad.png")

	snap := c.Progress()
	assert.Equal(t, int64(2), snap.Discovered)
	assert.Equal(t, int64(1), snap.Completed)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestCrawl_GlobPatternSelectsRoots(t *testing.T) {
	base := t.TempDir()
	pngData := encodeTestPNG(t, 8, 8)
	writeFile(t, filepath.Join(base, "set-a", "one.png"), pngData)
	writeFile(t, filepath.Join(base, "set-b", "two.png"), pngData)
	writeFile(t, filepath.Join(base, "other", "three.png"), pngData)

	c := New(Config{
		Globs:     []string{filepath.Join(base, "set-*")},
		Workers:   1,
		Extractor: extract.New(),
	})
	records, failures := drain(t, c)

	require.Empty(t, failures)
	require.Len(t, records, 2)
}

func TestCrawl_EmptyGlobYieldsNothing(t *testing.T) {
	c := New(Config{
		Globs:     []string{filepath.Join(t.TempDir(), "absent-*")},
		Workers:   1,
		Extractor: extract.New(),
	})
	records, failures := drain(t, c)
	assert.Empty(t, records)
	assert.Empty(t, failures)
}
