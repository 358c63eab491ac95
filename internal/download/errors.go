package download

import "errors"

// ErrNoURL is returned for a job without a source URL.
var ErrNoURL = errors.New("download job has no URL")
