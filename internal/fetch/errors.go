package fetch

import "errors"

var (
	// ErrUnexpectedStatus is returned when the server answers with anything other
	// than 200 OK. The body is discarded.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrPageTooLarge is returned when a page body exceeds the configured limit.
	ErrPageTooLarge = errors.New("page exceeds maximum size")

	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidSiteURL is returned when cookies are configured for a URL that
	// cannot be parsed.
	ErrInvalidSiteURL = errors.New("invalid site URL for cookies")
)
