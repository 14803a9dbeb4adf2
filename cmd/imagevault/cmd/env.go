package cmd

import (
	"log/slog"

	"github.com/imagevault/imagevault/internal/config"
	"github.com/imagevault/imagevault/internal/extract"
	"github.com/imagevault/imagevault/internal/store"
)

// env bundles the shared pieces every command needs.
type env struct {
	cfg   *config.Config
	store *store.SQLiteStore

	exif *extract.ExifToolReader
}

// openEnv loads configuration and opens the store for the active data
// directory.
func openEnv() (*env, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, store: s}, nil
}

// extractor builds the extraction stack: exiftool-backed tags when the
// binary is available, best-effort none otherwise.
func (e *env) extractor() *extract.Extractor {
	opts := []extract.Option{extract.WithMaxEdge(e.cfg.Thumbnails.MaxEdge)}

	exif, err := extract.NewExifToolReader()
	if err != nil {
		slog.Warn("exiftool unavailable, indexing without tags",
			slog.String("error", err.Error()))
	} else {
		e.exif = exif
		opts = append(opts, extract.WithTagReader(exif))
	}

	return extract.New(opts...)
}

func (e *env) close() {
	if e.exif != nil {
		_ = e.exif.Close()
	}
	_ = e.store.Close()
}
