package pipeline

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"imageflow/internal/logger"
	"imageflow/internal/models"
)

// ExtractMetadata reads dimensions, format and file attributes from the image
// at path. A file that cannot be decoded yields ErrUnreadableImage. EXIF
// extraction is best-effort: a parse failure only leaves the Exif field empty.
func ExtractMetadata(path string) (*models.Metadata, error) {
	const op = "pipeline.ExtractMetadata"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadableImage, err)
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreadableImage, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	meta := &models.Metadata{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Format:       strings.ToLower(format),
		SizeBytes:    info.Size(),
		FileDatetime: info.ModTime().UTC(),
		ProcessedAt:  time.Now().UTC(),
	}
	meta.Exif = extractExif(path)
	return meta, nil
}

// extractExif returns a flat tag-name to string-value map, or nil when the
// file carries no parseable EXIF block.
func extractExif(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		logger.S.Warnw("exif extraction failed", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		logger.S.Debugw("no exif data", "path", path, "error", err)
		return nil
	}

	tags := tagCollector{}
	if err := x.Walk(tags); err != nil {
		logger.S.Warnw("exif walk failed", "path", path, "error", err)
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[string(name)] = tag.String()
	return nil
}
