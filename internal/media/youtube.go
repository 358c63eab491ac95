package media

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kkdai/youtube/v2"
)

// YouTube resolves YouTube watch and embed URLs.
type YouTube struct {
	client *youtube.Client
}

// NewYouTube returns a resolver that makes its requests with httpClient.
// A nil httpClient uses http.DefaultClient.
func NewYouTube(httpClient *http.Client) *YouTube {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTube{client: &youtube.Client{HTTPClient: httpClient}}
}

// DirectURL returns the stream URL of the highest resolution format that
// carries both audio and video.
func (y *YouTube) DirectURL(ctx context.Context, videoURL string) (string, error) {
	video, err := y.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to load youtube video %s: %w", videoURL, err)
	}

	format := bestProgressive(video.Formats)
	if format == nil {
		return "", fmt.Errorf("%w: %s", ErrNoProgressiveStream, videoURL)
	}

	streamURL, err := y.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("failed to get youtube stream url: %w", err)
	}
	return streamURL, nil
}

// bestProgressive picks the tallest format with audio, breaking ties by bitrate.
func bestProgressive(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Height == 0 {
			continue
		}
		if best == nil || f.Height > best.Height ||
			(f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	return best
}
