package extract

import (
	"fmt"
	"log/slog"

	exiftool "github.com/barasher/go-exiftool"
)

// ExifToolReader reads EXIF tags through a long-lived exiftool process.
// Extraction is best-effort: any failure yields an empty map.
type ExifToolReader struct {
	et *exiftool.Exiftool
}

// Verify interface implementation at compile time.
var _ TagReader = (*ExifToolReader)(nil)

// NewExifToolReader starts the exiftool helper. Returns an error if the
// exiftool binary is not available; callers fall back to NoopTagReader.
func NewExifToolReader() (*ExifToolReader, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	return &ExifToolReader{et: et}, nil
}

// ReadTags implements TagReader.
func (r *ExifToolReader) ReadTags(path string) map[string]string {
	tags := map[string]string{}

	infos := r.et.ExtractMetadata(path)
	if len(infos) == 0 {
		return tags
	}
	info := infos[0]
	if info.Err != nil {
		slog.Debug("exif_extraction_failed",
			slog.String("path", path),
			slog.String("error", info.Err.Error()))
		return tags
	}

	for name, value := range info.Fields {
		tags[name] = fmt.Sprint(value)
	}
	return tags
}

// Close stops the exiftool helper process.
func (r *ExifToolReader) Close() error {
	return r.et.Close()
}
