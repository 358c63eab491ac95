package media

import (
	"context"
	"fmt"
	"strings"
)

// PageGetter loads a page, normally through the page cache.
type PageGetter interface {
	Get(ctx context.Context, url string, headers map[string]string) (string, bool, error)
}

// DirectURLer resolves a player URL without going through the page cache.
type DirectURLer interface {
	DirectURL(ctx context.Context, videoURL string) (string, error)
}

// Resolver dispatches an embed URL to the matching player backend.
type Resolver struct {
	pages   PageGetter
	youtube DirectURLer
	referer string
}

// NewResolver creates a Resolver. Vimeo player pages are requested with
// referer as Referer header; embedded players refuse requests without it.
func NewResolver(pages PageGetter, youtube DirectURLer, referer string) *Resolver {
	return &Resolver{pages: pages, youtube: youtube, referer: referer}
}

// Resolve returns the direct media URL for embedURL.
func (r *Resolver) Resolve(ctx context.Context, embedURL string) (string, error) {
	switch {
	case strings.Contains(embedURL, "vimeo"):
		return r.vimeo(ctx, embedURL)
	case strings.Contains(embedURL, "youtube"):
		if r.youtube == nil {
			return "", fmt.Errorf("%w: %s", ErrUnsupported, embedURL)
		}
		return r.youtube.DirectURL(ctx, embedURL)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, embedURL)
	}
}

func (r *Resolver) vimeo(ctx context.Context, embedURL string) (string, error) {
	var headers map[string]string
	if r.referer != "" {
		headers = map[string]string{"Referer": r.referer}
	}

	content, found, err := r.pages.Get(ctx, embedURL, headers)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlayerUnavailable, err)
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrPlayerUnavailable, embedURL)
	}

	direct, err := VimeoDirectURL(content)
	if err != nil {
		return "", fmt.Errorf("%s: %w", embedURL, err)
	}
	return direct, nil
}
