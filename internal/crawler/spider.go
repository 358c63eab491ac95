package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/coursegrab/internal/download"
	"github.com/nao1215/coursegrab/internal/media"
	"github.com/nao1215/coursegrab/internal/model"
)

// PageSource loads page HTML, normally through the page cache.
type PageSource interface {
	Get(ctx context.Context, url string, headers map[string]string) (string, bool, error)
}

// cachedChecker is implemented by page sources that can tell whether a page
// is served locally.
type cachedChecker interface {
	Cached(url string) bool
}

// VideoResolver turns an embedded player URL into a media file URL.
type VideoResolver interface {
	Resolve(ctx context.Context, embedURL string) (string, error)
}

// JobRunner downloads a module's jobs.
type JobRunner interface {
	Run(ctx context.Context, jobs []model.Job) []model.DownloadResult
}

// Spider walks catalog pages down to lesson modules.
type Spider struct {
	pages      PageSource
	resolver   VideoResolver
	downloader JobRunner
	logger     *slog.Logger
	report     *model.RunReport

	// maxDepth limits catalog nesting below the start page (start = 0).
	maxDepth int

	// maxPages stops the crawl after this many pages. 0 means no limit.
	maxPages int

	// ignorePatterns are URL path globs that are never followed.
	ignorePatterns []string

	// followPatterns, when set, are the only URL path globs followed.
	followPatterns []string

	// visited holds normalized URLs already dispatched in this run.
	visited map[string]bool
	mutex   sync.Mutex

	pageCount   int
	moduleCount int
	jobCount    int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets how many catalog levels below the start page are followed.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages stops the crawl after n pages. 0 means no limit.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithIgnorePatterns sets URL path patterns to skip (e.g. "/teach/control/stream/view/*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to URL paths matching one of patterns.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = l
	}
}

// WithReport records visited pages, downloads and problems into r.
func WithReport(r *model.RunReport) SpiderOption {
	return func(s *Spider) {
		s.report = r
	}
}

// NewSpider creates a Spider.
func NewSpider(pages PageSource, resolver VideoResolver, downloader JobRunner, opts ...SpiderOption) *Spider {
	s := &Spider{
		pages:      pages,
		resolver:   resolver,
		downloader: downloader,
		maxDepth:   10,
		visited:    make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Crawl processes the page at startURL and everything reachable from it.
// baseDir is the destination directory for the page's content and should end
// with a slash. Per-page and per-file failures are logged, recorded in the
// report and skipped; only context cancellation stops the crawl with an
// error.
func (s *Spider) Crawl(ctx context.Context, startURL, baseDir string) error {
	return s.crawl(ctx, startURL, "", baseDir, 0)
}

func (s *Spider) crawl(ctx context.Context, pageURL, title, baseDir string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pageURL = FixURL(pageURL)

	if depth > s.maxDepth {
		s.logger.Debug("max depth reached", "url", pageURL, "depth", depth)
		return nil
	}
	if !s.markVisited(pageURL) {
		s.logger.Debug("already visited", "url", pageURL)
		return nil
	}
	if s.limitReached() {
		s.logger.Debug("page limit reached", "url", pageURL)
		return nil
	}

	fromCache := false
	if cc, ok := s.pages.(cachedChecker); ok {
		fromCache = cc.Cached(pageURL)
	}

	content, found, err := s.pages.Get(ctx, pageURL, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.problem(pageURL, fmt.Errorf("failed to load page: %w", err))
		return nil
	}
	if !found {
		s.problem(pageURL, errors.New("page unavailable"))
		return nil
	}

	doc, err := ParseDocument(content)
	if err != nil {
		s.problem(pageURL, err)
		return nil
	}

	kind := Classify(content)
	s.countPage()

	page := model.Page{
		URL:       pageURL,
		Kind:      kind,
		Title:     title,
		Dir:       baseDir,
		Depth:     depth,
		FromCache: fromCache,
		VisitedAt: time.Now(),
	}

	switch kind {
	case model.PageKindStreamCatalog:
		s.recordPage(page)
		return s.catalog(ctx, doc.StreamCatalogLinks(pageURL), baseDir, depth)
	case model.PageKindLinkCatalog:
		s.recordPage(page)
		return s.catalog(ctx, doc.LinkCatalogLinks(pageURL), baseDir, depth)
	case model.PageKindModule:
		return s.module(ctx, page, doc)
	default:
		s.recordPage(page)
		s.logger.Debug("unrecognized page", "url", pageURL)
		return nil
	}
}

func (s *Spider) catalog(ctx context.Context, links []model.Link, baseDir string, depth int) error {
	for _, link := range links {
		if !s.shouldCrawl(link.URL) {
			s.logger.Debug("skipping filtered link", "url", link.URL)
			continue
		}
		childDir := baseDir + download.SanitizeFilename(link.Title) + "/"
		if err := s.crawl(ctx, link.URL, strings.TrimSpace(link.Title), childDir, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spider) module(ctx context.Context, page model.Page, doc *Document) error {
	header, err := doc.ModuleHeader()
	if err != nil {
		s.recordPage(page)
		s.problem(page.URL, err)
		return nil
	}

	moduleDir := ModuleDir(page.Dir, header)
	page.Title = header
	page.Dir = moduleDir
	s.recordPage(page)

	s.logger.Info("module", "title", header, "dir", moduleDir)

	jobs := make([]model.Job, 0)

	sources := doc.VideoSources()
	titles := VideoTitles(sources, doc.Headings())
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if src.URL == "" {
			continue
		}

		direct, err := s.resolver.Resolve(ctx, src.URL)
		if err != nil {
			if errors.Is(err, media.ErrUnsupported) {
				s.logger.Debug("skipping unsupported player", "url", src.URL)
				continue
			}
			s.problem(src.URL, err)
			continue
		}

		jobs = append(jobs, model.Job{
			Kind: model.JobKindVideo,
			URL:  direct,
			Path: path.Join(moduleDir, download.SanitizeFilename(titles[i])+".mp4"),
		})
	}

	for _, f := range doc.Attachments(page.URL) {
		jobs = append(jobs, model.Job{
			Kind: model.JobKindFile,
			URL:  f.URL,
			Path: path.Join(moduleDir, "files", download.SanitizeFilename(f.Name)+urlExt(f.URL)),
		})
	}

	s.mutex.Lock()
	s.moduleCount++
	s.jobCount += len(jobs)
	s.mutex.Unlock()

	for _, res := range s.downloader.Run(ctx, jobs) {
		if s.report != nil {
			s.report.AddDownload(res)
		}
	}
	return ctx.Err()
}

// ModuleDir returns the directory a module's files go to. A catalog entry
// usually carries the module's own name, in which case baseDir already ends
// with it and is used as is.
func ModuleDir(baseDir, header string) string {
	name := download.SanitizeFilename(header)
	if strings.HasSuffix(baseDir, name+"/") {
		return baseDir
	}
	return baseDir + name
}

// urlExt returns the extension of the URL path, ignoring query and fragment.
func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Ext(ClearURL(rawURL))
	}
	return path.Ext(u.Path)
}

func (s *Spider) problem(pageURL string, err error) {
	s.logger.Warn("skipping", "url", pageURL, "error", err)
	if s.report != nil {
		s.report.AddProblem(pageURL, err)
	}
}

func (s *Spider) recordPage(p model.Page) {
	if s.report != nil {
		s.report.AddPage(p)
	}
}

// markVisited records pageURL and reports whether it was new.
func (s *Spider) markVisited(pageURL string) bool {
	key := normalizeURL(pageURL)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

func (s *Spider) limitReached() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.maxPages > 0 && s.pageCount >= s.maxPages
}

func (s *Spider) countPage() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// normalizeURL normalizes a URL for deduplication: no fragment, lowercase
// scheme and host, "/" for an empty path.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pageCount,
		URLsSeen:     len(s.visited),
		Modules:      s.moduleCount,
		Jobs:         s.jobCount,
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages loaded and dispatched.
	PagesVisited int

	// URLsSeen is the number of unique URLs encountered, including ones
	// that could not be loaded.
	URLsSeen int

	// Modules is the number of lesson pages processed.
	Modules int

	// Jobs is the number of download jobs created.
	Jobs int
}

// shouldCrawl checks a URL against the ignore and follow patterns.
// Ignore patterns win; when follow patterns are set, one must match.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, p) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
//   - "/teach/*" matches "/teach/control" and "/teach/control/stream"
//   - "*.pdf" matches "/files/notes.pdf"
//   - other patterns use path.Match semantics
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}
