package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultRootURL is the training overview page the crawl starts from
	// when no URL is given on the command line.
	DefaultRootURL = "https://vozhdenium.com/teach/control"

	// DefaultDownloadDir is where the lesson tree is created, relative to
	// the working directory.
	DefaultDownloadDir = "download"

	// DefaultTimeout bounds a single HTTP request. Video files are large, so
	// the limit applies to the response headers only for downloads; see
	// fetch.Client.
	DefaultTimeout = 60 * time.Second

	// DefaultCrawlDepth limits catalog recursion. The site nests at most a
	// few levels; the limit only guards against link loops we fail to detect.
	DefaultCrawlDepth = 10

	// DefaultCrawlDelay is the minimum delay between page requests.
	// Zero disables pacing.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultConcurrency is the number of files of a module downloaded at once.
	DefaultConcurrency = 2

	// DefaultMaxPageSize limits how much HTML is read from a single page.
	DefaultMaxPageSize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent is sent with every request. The site serves the same
	// markup to browsers only, so we look like one.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultCookiesFile is the browser cookie dump looked up in the working
	// directory when no --cookies flag is given.
	DefaultCookiesFile = "cookies.json"

	// AppName is the application name used for XDG directory paths.
	AppName = "coursegrab"
)

// Config holds all options of a grab run.
// It is populated from CLI flags and the configuration file and passed down
// explicitly; no package keeps global configuration state.
type Config struct {
	// RootURL is the first page to fetch.
	RootURL string

	// DownloadDir is the root of the local lesson tree.
	DownloadDir string

	// CacheDir holds the HTML page cache. Cache files never expire;
	// delete the directory (or run "coursegrab cache clear") to refetch.
	CacheDir string

	// CookiesFile is a JSON object of cookie name to value copied from the
	// browser developer tools. Empty means no cookie file.
	CookiesFile string

	// Referer is sent when fetching embedded player pages. Vimeo refuses
	// to serve domain-restricted players without it. When empty it is
	// derived from RootURL.
	Referer string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDepth is the maximum catalog recursion depth (root = 0).
	CrawlDepth int

	// CrawlDelay is the minimum delay between page requests.
	CrawlDelay time.Duration

	// MaxPages stops the crawl after this many pages. Zero means no limit.
	MaxPages int

	// Concurrency is the number of simultaneous downloads within a module.
	Concurrency int

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxPageSize is the maximum number of HTML bytes read per page.
	MaxPageSize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// ConfigFilePath is the path to the configuration file.
	// If empty, .coursegrab is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the site entries loaded from the configuration file.
	SiteConfigs *File

	// ReportFile is where the run report is written. Empty means stdout.
	ReportFile string

	// JSONReport selects the JSON report format.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	MarkdownReport bool

	// DBDir is the directory of the archive database.
	DBDir string

	// SaveToDB records pages, downloads and runs in the archive database.
	SaveToDB bool

	// DryRun crawls and resolves everything but downloads nothing.
	DryRun bool

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		RootURL:     DefaultRootURL,
		DownloadDir: DefaultDownloadDir,
		CacheDir:    XDGPageCacheDir(),
		Timeout:     DefaultTimeout,
		CrawlDepth:  DefaultCrawlDepth,
		CrawlDelay:  DefaultCrawlDelay,
		Concurrency: DefaultConcurrency,
		UserAgent:   DefaultUserAgent,
		MaxPageSize: DefaultMaxPageSize,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for coursegrab.
// On Linux: ~/.local/share/coursegrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for coursegrab.
// On Linux: ~/.config/coursegrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for coursegrab.
// On Linux: ~/.cache/coursegrab
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// XDGPageCacheDir returns the default HTML page cache directory.
func XDGPageCacheDir() string {
	return filepath.Join(XDGCacheDir(), "pages")
}

// RootHost returns the host of RootURL, used to pick the site configuration.
// It returns an empty string if RootURL cannot be parsed.
func (c *Config) RootHost() string {
	u, err := url.Parse(c.RootURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// EffectiveReferer returns Referer, or the origin of RootURL with a trailing
// slash ("https://example.com/") when Referer is empty.
func (c *Config) EffectiveReferer() string {
	if c.Referer != "" {
		return c.Referer
	}
	u, err := url.Parse(c.RootURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.RootURL == "" {
		return ErrNoRootURL
	}
	u, err := url.Parse(c.RootURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidRootURL
	}
	if c.DownloadDir == "" {
		return ErrNoDownloadDir
	}
	if c.CacheDir == "" {
		return ErrNoCacheDir
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxPageSize < 0 {
		return ErrInvalidMaxPageSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}
