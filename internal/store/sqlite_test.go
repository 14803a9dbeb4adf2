package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/internal/distance"
	verrors "github.com/imagevault/imagevault/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testImage(path string, visualHash []byte) *Image {
	return &Image{
		Filename:    filepath.Base(path),
		Path:        path,
		Width:       640,
		Height:      480,
		Thumbnail:   []byte{0x89, 0x50, 0x4E, 0x47},
		ThumbWidth:  256,
		ThumbHeight: 192,
		Tags:        map[string]string{},
		VisualHash:  visualHash,
	}
}

func TestInsert_AssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	img := testImage("/photos/a.png", []byte{1, 2, 3, 4})
	id, err := s.Insert(ctx, img)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, img.ID)

	exists, err := s.ExistsByPath(ctx, "/photos/a.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsByPath(ctx, "/photos/missing.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInsert_DuplicatePathConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, testImage("/photos/a.png", nil))
	require.NoError(t, err)

	_, err = s.Insert(ctx, testImage("/photos/a.png", nil))
	require.Error(t, err)
	assert.True(t, verrors.IsConflict(err))

	// Dedup leaves exactly one record.
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsert_ValidatesRequiredFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Image)
	}{
		{"missing path", func(i *Image) { i.Path = "" }},
		{"missing resolution", func(i *Image) { i.Width = 0 }},
		{"missing thumbnail", func(i *Image) { i.Thumbnail = nil }},
		{"already persisted", func(i *Image) { i.ID = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage("/photos/x.png", nil)
			tt.mutate(img)
			_, err := s.Insert(ctx, img)
			assert.Error(t, err)
		})
	}
}

func TestInsert_RejectsMixedHashLengths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, testImage("/photos/a.png", []byte{1, 2, 3, 4}))
	require.NoError(t, err)

	_, err = s.Insert(ctx, testImage("/photos/b.png", []byte{1, 2}))
	require.Error(t, err)

	// Same length is fine.
	_, err = s.Insert(ctx, testImage("/photos/c.png", []byte{9, 9, 9, 9}))
	assert.NoError(t, err)
}

func TestInsert_TagRowsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	img := testImage("/photos/tagged.png", nil)
	img.Tags = map[string]string{"Model": "NIKON D90", "ISO": "400"}
	_, err := s.Insert(ctx, img)
	require.NoError(t, err)

	results, err := s.Find(ctx, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "NIKON D90", results[0].Tags["Model"])
	assert.Equal(t, "400", results[0].Tags["ISO"])
}

func TestFind_FilenameFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/a/cat.png", "/a/dog.png", "/b/catalog.png"} {
		_, err := s.Insert(ctx, testImage(p, nil))
		require.NoError(t, err)
	}

	filter := Filter{{Any: []Match{{Field: FieldFilename, Substring: "cat"}}}}
	results, err := s.Find(ctx, filter, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2) // cat.png and catalog.png

	// Unranked results come back in filename order.
	assert.Equal(t, "/b/catalog.png", results[1].Path)
}

func TestFind_LikeWildcardsAreLiteral(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, testImage("/a/100%.png", nil))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testImage("/a/plain.png", nil))
	require.NoError(t, err)

	filter := Filter{{Any: []Match{{Field: FieldFilename, Substring: "100%"}}}}
	results, err := s.Find(ctx, filter, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/a/100%.png", results[0].Path)
}

func TestFind_TagPairMatchesSameRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	img := testImage("/photos/exif.png", nil)
	img.Tags = map[string]string{"Model": "D90", "Make": "Nikon"}
	_, err := s.Insert(ctx, img)
	require.NoError(t, err)

	// Name and value from the same tag row match.
	results, err := s.Find(ctx, Filter{{Tag: &TagPair{Name: "Model", Value: "D90"}}}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Name from one row, value from another: no match.
	results, err = s.Find(ctx, Filter{{Tag: &TagPair{Name: "Model", Value: "Nikon"}}}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFind_TwoTagClausesAndCombine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	both := testImage("/photos/both.png", nil)
	both.Tags = map[string]string{"Make": "Nikon", "ISO": "400"}
	_, err := s.Insert(ctx, both)
	require.NoError(t, err)

	one := testImage("/photos/one.png", nil)
	one.Tags = map[string]string{"Make": "Nikon"}
	_, err = s.Insert(ctx, one)
	require.NoError(t, err)

	filter := Filter{
		{Any: []Match{{Field: FieldTagName, Substring: "Make"}}},
		{Any: []Match{{Field: FieldTagName, Substring: "ISO"}}},
	}
	results, err := s.Find(ctx, filter, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/photos/both.png", results[0].Path)
}

func TestFind_RankedAscendingWithCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ref := []byte{255, 0, 0, 0}
	near := []byte{250, 5, 0, 0}
	far := []byte{0, 255, 255, 255}

	_, err := s.Insert(ctx, testImage("/photos/far.png", far))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testImage("/photos/near.png", near))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testImage("/photos/nohash.png", nil))
	require.NoError(t, err)

	rank := &RankSpec{Function: distance.FuncCosine, Reference: ref, MaxDistance: 1e6}
	results, err := s.Find(ctx, nil, rank, 10)
	require.NoError(t, err)
	require.Len(t, results, 2) // nohash.png excluded from ranked scans

	assert.Equal(t, "/photos/near.png", results[0].Path)
	assert.Equal(t, "/photos/far.png", results[1].Path)

	// Distances are set, non-decreasing, and match in-process evaluation.
	require.NotNil(t, results[0].Distance)
	require.NotNil(t, results[1].Distance)
	assert.LessOrEqual(t, *results[0].Distance, *results[1].Distance)

	want, err := distance.Cosine(ref, near)
	require.NoError(t, err)
	assert.InDelta(t, want, *results[0].Distance, 1e-9)

	// A tight cutoff excludes the far image.
	rank.MaxDistance = *results[0].Distance + 1e-9
	results, err = s.Find(ctx, nil, rank, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/photos/near.png", results[0].Path)
}

func TestFind_RankedTieBrokenByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := []byte{200, 100, 50, 25}
	id1, err := s.Insert(ctx, testImage("/photos/z-first.png", hash))
	require.NoError(t, err)
	id2, err := s.Insert(ctx, testImage("/photos/a-second.png", hash))
	require.NoError(t, err)
	require.Less(t, id1, id2)

	rank := &RankSpec{Function: distance.FuncCosine, Reference: hash, MaxDistance: 10}
	results, err := s.Find(ctx, nil, rank, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, id1, results[0].ID)
	assert.Equal(t, id2, results[1].ID)
}

func TestFind_RankedRejectsUnknownFunction(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Find(context.Background(), nil,
		&RankSpec{Function: "no_such_fn", Reference: []byte{1}, MaxDistance: 1}, 10)
	assert.Error(t, err)
}

func TestFind_LimitCapsResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, testImage(fmt.Sprintf("/photos/img-%d.png", i), nil))
		require.NoError(t, err)
	}

	results, err := s.Find(ctx, nil, nil, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDeleteImage_CascadesTagsAndHashes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	img := testImage("/photos/doomed.png", []byte{1, 2, 3, 4})
	img.Tags = map[string]string{"Make": "Nikon"}
	id, err := s.Insert(ctx, img)
	require.NoError(t, err)

	require.NoError(t, s.DeleteImage(ctx, id))

	exists, err := s.ExistsByPath(ctx, "/photos/doomed.png")
	require.NoError(t, err)
	assert.False(t, exists)

	// Tag rows are gone with the image.
	results, err := s.Find(ctx, Filter{{Any: []Match{{Field: FieldTagName, Substring: "Make"}}}}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Re-index path: the same canonical path can be inserted again.
	_, err = s.Insert(ctx, testImage("/photos/doomed.png", []byte{4, 3, 2, 1}))
	assert.NoError(t, err)
}

func TestWatchedDirectories_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	globs, err := s.WatchedDirectories(ctx)
	require.NoError(t, err)
	assert.Empty(t, globs)

	require.NoError(t, s.AddWatchedDirectory(ctx, "/photos"))
	require.NoError(t, s.AddWatchedDirectory(ctx, "/archive"))

	err = s.AddWatchedDirectory(ctx, "/photos")
	require.Error(t, err)
	assert.True(t, verrors.IsConflict(err))

	globs, err = s.WatchedDirectories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/archive", "/photos"}, globs)

	require.NoError(t, s.RemoveWatchedDirectory(ctx, "/archive"))
	globs, err = s.WatchedDirectories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/photos"}, globs)
}

func TestOpen_CreatesFileDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir + "/sub/vault.db")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Insert(context.Background(), testImage("/photos/a.png", nil))
	assert.NoError(t, err)
}
