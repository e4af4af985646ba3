// Package caption resolves a descriptive caption for an uploaded image by
// trying an ordered chain of strategies and returning the first success.
package caption

import (
	"context"
	"net/http"
	"strings"

	"imageflow/internal/logger"
	"imageflow/internal/models"
)

// FallbackCaption is returned when every strategy fails, including reopening
// the source file for the metadata-derived description.
const FallbackCaption = "An uploaded image"

// Strategy is one candidate method for producing a caption.
type Strategy interface {
	Name() string
	Caption(ctx context.Context, path string) (string, error)
}

// Resolver tries its strategies in order and never fails.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds the default strategy chain from configuration. Remote
// strategies without an endpoint and the local strategy without a command are
// left out of the chain; the metadata fallback is always present.
func NewResolver(cfg models.CaptionConfig) *Resolver {
	client := &http.Client{Timeout: cfg.Timeout()}

	var chain []Strategy
	if cfg.PrimaryURL != "" {
		chain = append(chain,
			&remoteStrategy{name: "remote-primary", url: cfg.PrimaryURL, token: cfg.APIToken, client: client},
			&remoteStrategy{name: "remote-primary-base64", url: cfg.PrimaryURL, token: cfg.APIToken, client: client, base64Body: true},
		)
	}
	if cfg.AlternateURL != "" {
		chain = append(chain,
			&remoteStrategy{name: "remote-alternate", url: cfg.AlternateURL, token: cfg.APIToken, client: client})
	}
	if cfg.LocalCommand != "" {
		chain = append(chain, &localStrategy{command: cfg.LocalCommand})
	}
	chain = append(chain, &metadataStrategy{})

	return &Resolver{strategies: chain}
}

// Resolve returns a non-empty caption for the image at path. It degrades
// through the chain and falls back to a fixed generic string, logging which
// strategy produced the result and why each earlier one was skipped.
func (r *Resolver) Resolve(ctx context.Context, path string) string {
	for _, s := range r.strategies {
		raw, err := s.Caption(ctx, path)
		if err != nil {
			logger.S.Warnw("caption strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		caption := StripPrefix(raw)
		if caption == "" {
			logger.S.Warnw("caption strategy returned empty caption", "strategy", s.Name())
			continue
		}
		logger.S.Infow("caption resolved", "strategy", s.Name(), "caption", caption)
		return caption
	}
	logger.S.Warnw("all caption strategies failed", "path", path)
	return FallbackCaption
}

var verbosePrefixes = []string{
	"a picture of ",
	"an image of ",
}

// StripPrefix removes one leading verbose caption prefix, case-insensitively,
// and trims surrounding whitespace.
func StripPrefix(caption string) string {
	caption = strings.TrimSpace(caption)
	lower := strings.ToLower(caption)
	for _, p := range verbosePrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(caption[len(p):])
		}
	}
	return caption
}
