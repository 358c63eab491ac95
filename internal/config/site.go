package config

import (
	"sort"
	"strings"
)

// SiteConfig holds site-specific settings for one host.
type SiteConfig struct {
	// Cookie is a raw Cookie header value.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Cookies maps cookie names to values. They are sent together with Cookie.
	Cookies map[string]string `yaml:"cookies,omitempty"`

	// CookiesFile is a browser cookie dump (see LoadCookies) loaded on top of
	// Cookies. Relative paths are resolved against the working directory.
	CookiesFile string `yaml:"cookiesFile,omitempty"`

	// Headers are custom HTTP headers included in every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Referer overrides the Referer sent to embedded players.
	Referer string `yaml:"referer,omitempty"`

	// Depth overrides the global crawl depth. Zero keeps the global value.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL path globs never crawled (e.g. "/logout*").
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .coursegrab configuration file.
type File struct {
	// Sites maps host names (e.g. "vozhdenium.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merged over the defaults.
// A "www." prefix is ignored when looking the host up.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Cookies = copyMap(cf.Defaults.Cookies)
	result.Headers = copyMap(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		siteConfig, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.CookiesFile != "" {
		result.CookiesFile = siteConfig.CookiesFile
	}
	if siteConfig.Referer != "" {
		result.Referer = siteConfig.Referer
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	result.Cookies = mergeMap(result.Cookies, siteConfig.Cookies)
	result.Headers = mergeMap(result.Headers, siteConfig.Headers)
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

// CookieHeader renders Cookie and Cookies as a single Cookie header value.
// Named cookies are sorted so the header is stable between runs.
func (sc SiteConfig) CookieHeader() string {
	parts := make([]string, 0, len(sc.Cookies)+1)
	if c := strings.TrimSpace(sc.Cookie); c != "" {
		parts = append(parts, c)
	}

	names := make([]string, 0, len(sc.Cookies))
	for name := range sc.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"="+sc.Cookies[name])
	}

	return strings.Join(parts, "; ")
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mergeMap copies override into base, allocating base if needed.
func mergeMap(base, override map[string]string) map[string]string {
	if len(override) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(override))
	}
	for k, v := range override {
		base[k] = v
	}
	return base
}
