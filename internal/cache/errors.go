package cache

import "errors"

// ErrUnsafePath is returned when a URL maps to a path outside the cache directory.
var ErrUnsafePath = errors.New("cache path escapes cache directory")
