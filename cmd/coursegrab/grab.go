package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/coursegrab/internal/cache"
	"github.com/nao1215/coursegrab/internal/config"
	"github.com/nao1215/coursegrab/internal/crawler"
	"github.com/nao1215/coursegrab/internal/database"
	"github.com/nao1215/coursegrab/internal/download"
	"github.com/nao1215/coursegrab/internal/fetch"
	"github.com/nao1215/coursegrab/internal/media"
	"github.com/nao1215/coursegrab/internal/model"
	"github.com/nao1215/coursegrab/internal/report"
)

// NewGrabCmd creates the grab command.
func NewGrabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grab [root-url]",
		Short: "Crawl the course and download videos and files",
		Long: `Grab starts at the training overview page and walks every catalog page
below it. Each lesson page becomes a directory holding its videos, named after
the caption above each player, and a files/ directory with the attachments.

Pages are cached on disk and existing files are skipped, so running grab again
after an interruption only fetches what is missing.

Examples:
  # Grab the default course with cookies from ./cookies.json
  coursegrab grab

  # Grab a specific training into ~/courses
  coursegrab grab -o ~/courses https://vozhdenium.com/teach/control/stream/view/id/123

  # See what would be downloaded without downloading
  coursegrab grab --dry-run

  # Save a Markdown report next to the files
  coursegrab grab --markdown -r download/REPORT.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGrabCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultDownloadDir,
		"Directory the course tree is written to")
	cmd.Flags().String("cache-dir", config.XDGPageCacheDir(),
		"Directory of the HTML page cache")
	cmd.Flags().String("cookies", "",
		"Browser cookie dump (JSON object of name to value; default: ./cookies.json if present)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .coursegrab in current or home directory)")
	cmd.Flags().String("referer", "",
		"Referer sent to embedded players (default: origin of the root URL)")

	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum catalog recursion depth")
	cmd.Flags().Int("max-pages", 0,
		"Stop after this many pages (0 means no limit)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between page requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("concurrency", "j", config.DefaultConcurrency,
		"Number of files of a lesson downloaded at once")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")
	cmd.Flags().Bool("dry-run", false,
		"Crawl and resolve videos but download nothing")

	cmd.Flags().StringP("report", "r", "",
		"Write the run report to this file (creates directories if needed)")
	cmd.Flags().Bool("json", false,
		"Write the report as JSON (mutually exclusive with --markdown)")
	cmd.Flags().Bool("markdown", false,
		"Write the report as Markdown (mutually exclusive with --json)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the archive database")

	return cmd
}

func runGrabCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runGrab(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from cobra command flags and the
// configuration file entry of the root URL's host.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if len(args) > 0 {
		cfg.RootURL = strings.TrimSpace(args[0])
	}

	if cfg.DownloadDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
		return nil, err
	}
	if cfg.CookiesFile, err = flags.GetString("cookies"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Referer, err = flags.GetString("referer"); err != nil {
		return nil, err
	}
	if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicitly given config file must exist; the default locations
	// are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	site := cfg.SiteConfigs.GetSiteConfig(cfg.RootHost())
	if site.Depth > 0 && !flags.Changed("depth") {
		cfg.CrawlDepth = site.Depth
	}
	if cfg.Referer == "" {
		cfg.Referer = site.Referer
	}
	if cfg.CookiesFile == "" {
		cfg.CookiesFile = site.CookiesFile
	}

	return cfg, nil
}

// siteCookies returns the named cookies of the site entry merged with the
// cookie dump. The dump is optional only when it was not asked for.
func siteCookies(cfg *config.Config, site config.SiteConfig) (map[string]string, error) {
	cookies := make(map[string]string, len(site.Cookies))
	for k, v := range site.Cookies {
		cookies[k] = v
	}

	path := cfg.CookiesFile
	if path == "" {
		if _, err := os.Stat(config.DefaultCookiesFile); err != nil {
			return cookies, nil
		}
		path = config.DefaultCookiesFile
	}

	dump, err := config.LoadCookies(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	for k, v := range dump {
		cookies[k] = v
	}
	return cookies, nil
}

// runGrab crawls the course and writes the run report.
func runGrab(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	site := cfg.SiteConfigs.GetSiteConfig(cfg.RootHost())

	cookies, err := siteCookies(cfg, site)
	if err != nil {
		return err
	}
	site.Cookies = cookies
	if len(cookies) == 0 && site.Cookie == "" {
		logger.Warn("no session cookies configured; lesson pages will likely be unavailable",
			"cookiesFile", config.DefaultCookiesFile)
	}

	client, err := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(site.Headers),
		fetch.WithCookies(cfg.RootURL, site.CookieHeader()),
		fetch.WithDelay(cfg.CrawlDelay),
		fetch.WithMaxPageSize(cfg.MaxPageSize),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// YouTube gets a client without the site session.
	plain, err := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	var db *database.ArchiveDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	pages := cache.NewPageCache(cfg.CacheDir, client, logger)
	resolver := media.NewResolver(pages, media.NewYouTube(plain.HTTPClient()), cfg.EffectiveReferer())
	downloader := download.New(client,
		download.WithConcurrency(cfg.Concurrency),
		download.WithDryRun(cfg.DryRun),
		download.WithLogger(logger),
	)

	runReport := model.NewRunReport(cfg.RootURL, cfg.DownloadDir)
	runReport.DryRun = cfg.DryRun

	spider := crawler.NewSpider(pages, resolver, downloader,
		crawler.WithMaxDepth(cfg.CrawlDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
		crawler.WithReport(runReport),
	)

	logger.Info("starting grab",
		"url", cfg.RootURL,
		"output", cfg.DownloadDir,
		"cache", cfg.CacheDir,
		"dryRun", cfg.DryRun,
	)

	crawlErr := spider.Crawl(ctx, cfg.RootURL, baseDir(cfg.DownloadDir))
	if crawlErr != nil {
		if !errors.Is(crawlErr, context.Canceled) && !errors.Is(crawlErr, context.DeadlineExceeded) {
			return crawlErr
		}
		runReport.Cancelled = true
		logger.Warn("grab interrupted", "error", crawlErr)
	}
	runReport.Finish()

	stats := spider.Stats()
	logger.Debug("crawl finished", "pages", stats.PagesVisited, "modules", stats.Modules, "jobs", stats.Jobs)

	if err := outputReport(cfg, runReport, out); err != nil {
		logger.Error("failed to write report", "error", err)
	}

	// The run is recorded even when it was interrupted.
	if err := saveRun(context.WithoutCancel(ctx), db, runReport, logger); err != nil {
		logger.Error("failed to save run", "error", err)
	}

	if runReport.Cancelled {
		return crawlErr
	}

	fmt.Fprintln(out, "ready")
	return nil
}

// baseDir returns dir in the slash-terminated form the crawler joins names to.
func baseDir(dir string) string {
	dir = filepath.ToSlash(dir)
	if strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}

// outputReport prints the summary and, when requested, writes the report
// file in the selected format.
func outputReport(cfg *config.Config, runReport *model.RunReport, out io.Writer) error {
	if cfg.ReportFile == "" {
		w, err := formatWriter(cfg, out)
		if err != nil {
			return err
		}
		_, err = w.Write(runReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	fileWriter, err := formatWriter(cfg, f)
	if err != nil {
		return err
	}

	_, err = report.NewMultiWriter(report.NewSimpleWriter(out), fileWriter).Write(runReport)
	if err != nil {
		return err
	}
	return f.Close()
}

func formatWriter(cfg *config.Config, w io.Writer) (report.Writer, error) {
	switch {
	case cfg.JSONReport && cfg.MarkdownReport:
		return nil, config.ErrConflictingReportFormats
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w), nil
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose)), nil
	}
}

// saveRun records the run in the archive. A nil db is a no-op.
func saveRun(ctx context.Context, db *database.ArchiveDB, runReport *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	id, err := db.SaveRun(ctx, runReport)
	if err != nil {
		return err
	}
	logger.Debug("run saved to database", "id", id)
	return nil
}
