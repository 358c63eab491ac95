package model

// VideoSource is an embedded player found on a module page.
type VideoSource struct {
	// URL is the iframe src with a scheme and without the query string.
	URL string `json:"url"`

	// Position is the element's index in document order.
	// It orders videos relative to headings.
	Position int `json:"position"`
}

// Heading is a paragraph that titles the content following it.
// Lesson pages put each video caption in a div holding a single <p>.
type Heading struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Attachment is a downloadable file listed in a lesson's files block.
type Attachment struct {
	// Name is the visible link text.
	Name string `json:"name"`

	// URL is the absolute file URL.
	URL string `json:"url"`

	Position int `json:"position"`
}

// Video is an embedded player resolved to something downloadable.
type Video struct {
	// Title is "<index>_<heading>" or just "<index>" when no heading precedes
	// the player. The index counts every iframe on the page, including the
	// ones that were skipped.
	Title string `json:"title"`

	// EmbedURL is the player URL the video was resolved from.
	EmbedURL string `json:"embed_url"`

	// DirectURL is the media file URL.
	DirectURL string `json:"direct_url"`
}
