package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"imageflow/internal/logger"
	"imageflow/internal/models"
)

// GenerateThumbnails writes one bounded derivative per entry in
// models.ThumbnailSpecs and returns a size-label to file-path map. The output
// encoding is JPEG for jpeg-family sources and PNG otherwise. Images are never
// upscaled. Any write or encode failure aborts the whole job.
func GenerateThumbnails(src image.Image, srcFormat, originalName string, ts time.Time, dir string) (map[string]string, error) {
	const op = "pipeline.GenerateThumbnails"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrThumbnailWrite, err)
	}

	ext := "png"
	if isJPEG(srcFormat) {
		ext = "jpg"
	}

	thumbnails := make(map[string]string, len(models.ThumbnailSpecs))
	for _, spec := range models.ThumbnailSpecs {
		thumb := flatten(imaging.Fit(src, spec.MaxWidth, spec.MaxHeight, imaging.Lanczos))

		name := fmt.Sprintf("%s_%s_%s", TimestampToken(ts), spec.Label, SanitizeFilename(originalName))
		if !strings.HasSuffix(strings.ToLower(name), "."+ext) {
			name += "." + ext
		}
		path := filepath.Join(dir, name)

		if err := imaging.Save(thumb, path); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrThumbnailWrite, err)
		}
		thumbnails[spec.Label] = path
		logger.S.Infow("generated thumbnail", "size", spec.Label, "path", path)
	}
	return thumbnails, nil
}

func isJPEG(format string) bool {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return true
	}
	return false
}

// flatten composites the image over a white background, discarding any alpha
// channel before encoding. Derivatives are opaque regardless of the output
// format.
func flatten(img *image.NRGBA) *image.NRGBA {
	if img.Opaque() {
		return img
	}
	out := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}

// TimestampToken renders ts the way stored filenames expect it, with
// microsecond precision so uploads in the same second do not collide.
func TimestampToken(ts time.Time) string {
	return ts.UTC().Format("20060102150405") + fmt.Sprintf("%06d", ts.Nanosecond()/1000)
}
