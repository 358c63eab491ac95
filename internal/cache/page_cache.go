package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads a page from the network. It reports non-200 answers through
// the status code and a non-nil error.
type Fetcher interface {
	GetText(ctx context.Context, url string, headers map[string]string) (string, int, error)
}

// PageCache serves pages from disk and falls back to a Fetcher on a miss.
type PageCache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
	group   singleflight.Group
}

type result struct {
	text  string
	found bool
}

// NewPageCache returns a cache rooted at dir. logger may be nil.
func NewPageCache(dir string, fetcher Fetcher, logger *slog.Logger) *PageCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageCache{dir: dir, fetcher: fetcher, logger: logger}
}

// Dir returns the cache root.
func (c *PageCache) Dir() string {
	return c.dir
}

// Path returns the file the page for rawURL is stored in.
func (c *PageCache) Path(rawURL string) (string, error) {
	rel := filepath.FromSlash(PathFor(rawURL))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rawURL)
	}
	return filepath.Join(c.dir, rel), nil
}

// Cached reports whether rawURL has a cache entry.
func (c *PageCache) Cached(rawURL string) bool {
	path, err := c.Path(rawURL)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Get returns the page text for rawURL. An empty URL returns not found.
// A cached page is read from disk without a network request. On a miss the
// page is fetched and, when the server answers 200, stored before returning.
// Any other status returns not found with a nil error and writes nothing.
// Concurrent calls for the same URL share one fetch.
func (c *PageCache) Get(ctx context.Context, rawURL string, headers map[string]string) (string, bool, error) {
	if rawURL == "" {
		return "", false, nil
	}

	path, err := c.Path(rawURL)
	if err != nil {
		return "", false, err
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		return c.load(ctx, rawURL, path, headers)
	})
	if err != nil {
		return "", false, err
	}
	r := v.(result) //nolint:forcetypeassert // only result is stored
	return r.text, r.found, nil
}

func (c *PageCache) load(ctx context.Context, rawURL, path string, headers map[string]string) (result, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		c.logger.Debug("cache hit", "url", rawURL, "path", path)
		return result{text: string(data), found: true}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return result{}, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}

	text, status, err := c.fetcher.GetText(ctx, rawURL, headers)
	if err != nil {
		if status != 0 && status != http.StatusOK {
			c.logger.Debug("page not cached", "status", status, "url", rawURL)
			return result{}, nil
		}
		return result{}, err
	}

	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return result{}, err
	}
	return result{text: text, found: true}, nil
}

// Clear removes every cached page.
func (c *PageCache) Clear() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", c.dir, err)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so an
// interrupted run never leaves a truncated page that would be served later.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}
