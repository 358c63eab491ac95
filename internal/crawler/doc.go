// Package crawler walks the course site and turns its pages into download
// jobs.
//
// # Architecture
//
// The Spider is a dispatcher. It fetches a page through the page cache,
// recognizes its template with Classify and hands it to one of three
// handlers:
//
//   - stream catalog: anchors wrapping a span.stream-title, one per child page
//   - link catalog: div elements whose class is exactly "link title"
//   - module: a lesson page with embedded players and an attachments block
//
// Catalog handlers call the dispatcher again for every child, extending the
// destination directory with the child's title. The module handler resolves
// each player to a media URL and downloads the videos and attachments into
// the module directory.
//
// # Parsing
//
// Pages are parsed once into a Document (golang.org/x/net/html via goquery).
// Every element gets its index in document order so that a video can be
// named after the nearest caption above it.
//
// # Usage
//
//	spider := crawler.NewSpider(pageCache, resolver, downloader,
//	    crawler.WithMaxDepth(10),
//	    crawler.WithReport(report),
//	)
//	err := spider.Crawl(ctx, rootURL, "download/")
package crawler
