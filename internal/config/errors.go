package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoRootURL is returned when there is no page to start from.
	ErrNoRootURL = errors.New("no root URL specified")

	// ErrInvalidRootURL is returned when the root URL is not an absolute http(s) URL.
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http or https URL")

	// ErrNoDownloadDir is returned when the download directory is empty.
	ErrNoDownloadDir = errors.New("no download directory specified")

	// ErrNoCacheDir is returned when the page cache directory is empty.
	ErrNoCacheDir = errors.New("no cache directory specified")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidConcurrency is returned when the download concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxPageSize is returned when the page size limit is negative.
	ErrInvalidMaxPageSize = errors.New("invalid max page size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCookiesFile is returned when the cookie dump is not a JSON
	// object of string values.
	ErrInvalidCookiesFile = errors.New("invalid cookies file: expected a JSON object of cookie names to values")
)
