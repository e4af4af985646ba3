package caption

import (
	"context"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// metadataStrategy derives a generic description from the image dimensions
// and format. It is the last strategy in the chain and fails only when the
// source file itself cannot be reopened or decoded.
type metadataStrategy struct{}

func (s *metadataStrategy) Name() string { return "metadata" }

func (s *metadataStrategy) Caption(_ context.Context, path string) (string, error) {
	const op = "caption.metadata"

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	if format == "" {
		format = "unknown format"
	}
	return fmt.Sprintf("An image (%dx%d, %s)", cfg.Width, cfg.Height, format), nil
}
