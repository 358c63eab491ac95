package media

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Markers that introduce the inline config object in a Vimeo player page.
// Older players assign it to a local variable, newer ones to window.
var vimeoConfigMarkers = []string{
	"var config = ",
	"window.playerConfig = ",
}

const vimeoConfigEnd = "; if"

type vimeoConfig struct {
	Request struct {
		Files struct {
			Progressive []vimeoStream `json:"progressive"`
		} `json:"files"`
	} `json:"request"`
}

type vimeoStream struct {
	URL     string `json:"url"`
	Height  int    `json:"height"`
	Width   int    `json:"width"`
	Quality string `json:"quality"`
}

// VimeoDirectURL extracts the URL of the highest progressive stream from a
// Vimeo player page. When several streams share the top height the first
// listed wins.
func VimeoDirectURL(playerHTML string) (string, error) {
	raw, ok := vimeoConfigJSON(playerHTML)
	if !ok {
		return "", ErrVimeoConfigNotFound
	}

	var cfg vimeoConfig
	// The decoder stops after the first value, so anything that follows the
	// object on the same line is ignored.
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&cfg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrVimeoConfigNotFound, err)
	}

	var best *vimeoStream
	for i := range cfg.Request.Files.Progressive {
		s := &cfg.Request.Files.Progressive[i]
		if s.URL == "" {
			continue
		}
		if best == nil || s.Height > best.Height {
			best = s
		}
	}
	if best == nil {
		return "", ErrNoProgressiveStream
	}
	return best.URL, nil
}

func vimeoConfigJSON(content string) (string, bool) {
	for _, marker := range vimeoConfigMarkers {
		start := strings.Index(content, marker)
		if start < 0 {
			continue
		}
		rest := content[start+len(marker):]
		if end := strings.Index(rest, vimeoConfigEnd); end >= 0 {
			rest = rest[:end]
		}
		return rest, true
	}
	return "", false
}
