package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/coursegrab/internal/model"
	"golang.org/x/net/html"
)

// Markers that identify page templates. They are tested against the raw
// HTML in this order.
const (
	markerStreamCatalog = "stream-title"
	markerLinkCatalog   = "link title"
	markerModule        = "videoWrapper"
)

var idPathPattern = regexp.MustCompile(`(.+)/id/(\d+)`)

// Classify recognizes the page template from its raw HTML.
func Classify(content string) model.PageKind {
	switch {
	case strings.Contains(content, markerStreamCatalog):
		return model.PageKindStreamCatalog
	case strings.Contains(content, markerLinkCatalog):
		return model.PageKindLinkCatalog
	case strings.Contains(content, markerModule):
		return model.PageKindModule
	default:
		return model.PageKindUnknown
	}
}

// FixURL rewrites ".../id/123" into "...?id=123". The site serves the same
// page under both forms; the query form is the canonical one.
func FixURL(rawURL string) string {
	return idPathPattern.ReplaceAllString(rawURL, "${1}?id=${2}")
}

// ClearURL drops the query string and everything after it.
func ClearURL(rawURL string) string {
	before, _, _ := strings.Cut(rawURL, "?")
	return before
}

// AddScheme prefixes protocol-relative URLs with "https:".
func AddScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http") {
		return rawURL
	}
	return "https:" + rawURL
}

// Document is a parsed page.
type Document struct {
	doc *goquery.Document

	// positions maps every node to its index in document order.
	positions map[*html.Node]int
}

// ParseDocument parses HTML content.
func ParseDocument(content string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{doc: doc, positions: make(map[*html.Node]int)}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		d.positions[n] = len(d.positions)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	return d, nil
}

func (d *Document) position(s *goquery.Selection) int {
	if len(s.Nodes) == 0 {
		return -1
	}
	return d.positions[s.Nodes[0]]
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// StreamCatalogLinks returns one link per anchor that wraps a
// span.stream-title. The span text is the title. Anchors without href are
// skipped.
func (d *Document) StreamCatalogLinks(pageURL string) []model.Link {
	base, _ := url.Parse(pageURL) //nolint:errcheck // a nil base leaves hrefs unresolved

	links := make([]model.Link, 0)
	d.doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		span := a.Find("span.stream-title").First()
		if span.Length() == 0 {
			return
		}
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		links = append(links, model.Link{
			URL:   resolve(base, href),
			Title: span.Text(),
		})
	})
	return links
}

// LinkCatalogLinks returns one link per div whose class attribute is exactly
// "link title". The URL is the div's own href, falling back to its first
// anchor; entries without either are skipped. The div text is the title.
func (d *Document) LinkCatalogLinks(pageURL string) []model.Link {
	base, _ := url.Parse(pageURL) //nolint:errcheck // a nil base leaves hrefs unresolved

	links := make([]model.Link, 0)
	d.doc.Find(`div[class="link title"]`).Each(func(_ int, div *goquery.Selection) {
		href, ok := div.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			href, ok = div.Find("a[href]").First().Attr("href")
		}
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		links = append(links, model.Link{
			URL:   resolve(base, href),
			Title: div.Text(),
		})
	})
	return links
}

// ModuleHeader returns the lesson name: the first .lesson-title-value, else
// the <title>, else the first anchor inside div.page-header.
func (d *Document) ModuleHeader() (string, error) {
	if s := d.doc.Find(".lesson-title-value").First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text()), nil
	}
	if s := d.doc.Find("title").First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text()), nil
	}
	if s := d.doc.Find("div.page-header").First().Find("a").First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text()), nil
	}
	return "", ErrNoModuleHeader
}

// VideoSources returns every iframe in document order. The URL gets a scheme
// and loses its query string. An iframe without src is kept with an empty URL
// so that video numbering stays stable.
func (d *Document) VideoSources() []model.VideoSource {
	sources := make([]model.VideoSource, 0)
	d.doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src != "" {
			src = ClearURL(AddScheme(src))
		}
		sources = append(sources, model.VideoSource{URL: src, Position: d.position(s)})
	})
	return sources
}

// Headings returns the captions of the page: for every div that contains
// exactly one <p> (at any depth), that paragraph's trimmed text. Results are
// ordered by position; a paragraph is reported once even when several
// nested divs qualify.
func (d *Document) Headings() []model.Heading {
	seen := make(map[*html.Node]bool)
	headings := make([]model.Heading, 0)

	d.doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		ps := div.Find("p")
		if ps.Length() != 1 {
			return
		}
		node := ps.Nodes[0]
		if seen[node] {
			return
		}
		seen[node] = true
		headings = append(headings, model.Heading{
			Text:     strings.TrimSpace(ps.Text()),
			Position: d.positions[node],
		})
	})

	sort.SliceStable(headings, func(i, j int) bool {
		return headings[i].Position < headings[j].Position
	})
	return headings
}

// Attachments returns the links inside div.lt-lesson-files blocks, resolved
// against pageURL. Links without href are skipped.
func (d *Document) Attachments(pageURL string) []model.Attachment {
	base, _ := url.Parse(pageURL) //nolint:errcheck // a nil base leaves hrefs unresolved

	files := make([]model.Attachment, 0)
	d.doc.Find("div.lt-lesson-files").Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		files = append(files, model.Attachment{
			Name:     strings.TrimSpace(a.Text()),
			URL:      resolve(base, href),
			Position: d.position(a),
		})
	})
	return files
}

// VideoTitles names each source after the closest heading positioned before
// it: "<index>_<heading>", or "<index>" when there is none. headings must be
// sorted by position.
func VideoTitles(sources []model.VideoSource, headings []model.Heading) []string {
	titles := make([]string, len(sources))
	for i, src := range sources {
		var nearest string
		for _, h := range headings {
			if h.Position >= src.Position {
				break
			}
			nearest = h.Text
		}

		if nearest != "" {
			titles[i] = strconv.Itoa(i) + "_" + nearest
		} else {
			titles[i] = strconv.Itoa(i)
		}
	}
	return titles
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
