package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/coursegrab/internal/cache"
	"github.com/nao1215/coursegrab/internal/config"
	"github.com/nao1215/coursegrab/internal/crawler"
)

// NewCacheCmd creates the cache command and its subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the HTML page cache",
		Long: `Cache works with the on-disk cache of fetched pages.

Cached pages never expire. Clear the cache when the course got new lessons
or when signed video URLs in cached player pages have expired.

Examples:
  # Show where a page is cached
  coursegrab cache path https://vozhdenium.com/teach/control/lesson/view?id=10

  # Remove every cached page
  coursegrab cache clear`,
	}

	cmd.PersistentFlags().String("cache-dir", config.XDGPageCacheDir(),
		"Directory of the HTML page cache")

	cmd.AddCommand(&cobra.Command{
		Use:   "path <url>",
		Short: "Print the cache file of a page URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runCachePathCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the page cache directory",
		Args:  cobra.NoArgs,
		RunE:  runCacheClearCmd,
	})

	return cmd
}

func pageCacheFromFlags(cmd *cobra.Command) (*cache.PageCache, error) {
	dir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, config.ErrNoCacheDir
	}
	return cache.NewPageCache(dir, nil, newLogger(cmd)), nil
}

func runCachePathCmd(cmd *cobra.Command, args []string) error {
	pages, err := pageCacheFromFlags(cmd)
	if err != nil {
		return err
	}

	// Pages are cached under their canonical URL.
	pageURL := crawler.FixURL(args[0])
	path, err := pages.Path(pageURL)
	if err != nil {
		return err
	}

	state := "missing"
	if pages.Cached(pageURL) {
		state = "cached"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, state)
	return nil
}

func runCacheClearCmd(cmd *cobra.Command, _ []string) error {
	pages, err := pageCacheFromFlags(cmd)
	if err != nil {
		return err
	}

	if err := pages.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared page cache: %s\n", pages.Dir())
	return nil
}
