package model

import "time"

// PageKind is the template a fetched page was recognized as.
//
// The site serves three templates we understand: two catalog listings that
// link to further pages and the lesson (module) page that embeds videos.
type PageKind int

const (
	// PageKindUnknown is any page that matches none of the known templates.
	// Such pages are fetched and cached but otherwise ignored.
	PageKindUnknown PageKind = iota

	// PageKindStreamCatalog is a training listing whose anchors carry a
	// <span class="stream-title"> with the child title.
	PageKindStreamCatalog

	// PageKindLinkCatalog is a listing made of <div class="link title"> entries.
	PageKindLinkCatalog

	// PageKindModule is a lesson page with embedded video players
	// (recognized by its videoWrapper blocks) and optional attached files.
	PageKindModule
)

// String returns the name used in logs, reports and the archive database.
func (k PageKind) String() string {
	switch k {
	case PageKindStreamCatalog:
		return "stream-catalog"
	case PageKindLinkCatalog:
		return "link-catalog"
	case PageKindModule:
		return "module"
	default:
		return "unknown"
	}
}

// MarshalText stores the kind by name in JSON reports.
func (k PageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *PageKind) UnmarshalText(text []byte) error {
	*k = ParsePageKind(string(text))
	return nil
}

// IsCatalog reports whether pages of this kind list child pages.
func (k PageKind) IsCatalog() bool {
	return k == PageKindStreamCatalog || k == PageKindLinkCatalog
}

// ParsePageKind converts a stored kind name back to a PageKind.
// Unrecognized names map to PageKindUnknown.
func ParsePageKind(s string) PageKind {
	switch s {
	case "stream-catalog":
		return PageKindStreamCatalog
	case "link-catalog":
		return PageKindLinkCatalog
	case "module":
		return PageKindModule
	default:
		return PageKindUnknown
	}
}

// Page is a visited page and the local directory its content maps to.
type Page struct {
	// URL is the page URL after id rewriting (".../id/123" -> "...?id=123").
	URL string `json:"url"`

	// Kind is the recognized template.
	Kind PageKind `json:"kind"`

	// Title is the module header for modules and the listing title given by
	// the parent catalog for catalogs. Empty for the root page.
	Title string `json:"title,omitempty"`

	// Dir is the download directory this page's content goes to.
	Dir string `json:"dir"`

	// Depth is the recursion depth at which the page was reached (root = 0).
	Depth int `json:"depth"`

	// FromCache is true when the HTML came from the local page cache.
	FromCache bool `json:"from_cache"`

	// VisitedAt is when the page was processed.
	VisitedAt time.Time `json:"visited_at"`
}

// Link is a child entry discovered on a catalog page.
type Link struct {
	// URL is the absolute URL of the child page.
	URL string `json:"url"`

	// Title is the visible title; it becomes the child's directory name.
	Title string `json:"title"`
}
