package media

import "errors"

var (
	// ErrUnsupported is returned for players that are neither Vimeo nor YouTube.
	ErrUnsupported = errors.New("unsupported video player")

	// ErrVimeoConfigNotFound is returned when a Vimeo player page has no
	// inline player config.
	ErrVimeoConfigNotFound = errors.New("vimeo player config not found")

	// ErrNoProgressiveStream is returned when a player offers no stream that
	// carries both audio and video in a single file.
	ErrNoProgressiveStream = errors.New("no progressive stream available")

	// ErrPlayerUnavailable is returned when the player page could not be loaded.
	ErrPlayerUnavailable = errors.New("player page unavailable")
)
