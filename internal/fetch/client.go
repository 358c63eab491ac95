package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// maxRedirects stops redirect loops on login walls.
const maxRedirects = 10

// Client performs page and media requests with the configured session.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	maxPageSize int64
}

type options struct {
	timeout     time.Duration
	proxyAddr   string
	userAgent   string
	headers     map[string]string
	siteURL     string
	cookie      string
	delay       time.Duration
	maxPageSize int64
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithProxy routes all connections through the SOCKS5 proxy at addr ("host:port").
func WithProxy(addr string) Option {
	return func(o *options) { o.proxyAddr = addr }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithCookies authenticates requests to siteURL's host with header, a
// preformatted Cookie header value. The value is sent byte for byte and
// never to other hosts.
func WithCookies(siteURL, header string) Option {
	return func(o *options) {
		o.siteURL = siteURL
		o.cookie = header
	}
}

// WithDelay spaces page requests at least d apart.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithMaxPageSize limits the size of a page read by GetText.
func WithMaxPageSize(n int64) Option {
	return func(o *options) { o.maxPageSize = n }
}

// WithLogger sets the logger used to report each fetch.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient builds a Client from opts.
func NewClient(opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	if o.proxyAddr != "" {
		if !isValidProxyAddress(o.proxyAddr) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", o.proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	inject := &headerInjectingTransport{
		base:      transport,
		userAgent: o.userAgent,
		headers:   o.headers,
	}

	if o.siteURL != "" {
		site, err := url.Parse(o.siteURL)
		if err != nil || site.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSiteURL, o.siteURL)
		}
		inject.cookieHost = site.Hostname()
		inject.cookie = o.cookie
	}

	c := &Client{
		http: &http.Client{
			Transport: inject,
			Timeout:   o.timeout,
			Jar:       jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger:      o.logger,
		maxPageSize: o.maxPageSize,
	}
	if o.delay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(o.delay), 1)
	}
	return c, nil
}

// HTTPClient returns the underlying client for libraries that make their own
// requests, such as the YouTube metadata client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// GetText loads a page and returns its body decoded to UTF-8 together with
// the status code. A non-200 status yields ErrUnexpectedStatus and no text.
func (c *Client) GetText(ctx context.Context, rawURL string, headers map[string]string) (string, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", 0, err
		}
	}

	resp, err := c.get(ctx, rawURL, headers)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	c.logger.Info("fetched", "status", resp.StatusCode, "url", rawURL)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
		return "", resp.StatusCode, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, rawURL)
	}

	var body io.Reader = resp.Body
	if c.maxPageSize > 0 {
		body = io.LimitReader(resp.Body, c.maxPageSize+1)
	}

	utf8Body, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) {
		return "", resp.StatusCode, nil
	}
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to detect charset of %s: %w", rawURL, err)
	}

	data, err := io.ReadAll(utf8Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if c.maxPageSize > 0 && int64(len(data)) > c.maxPageSize {
		return "", resp.StatusCode, fmt.Errorf("%w: %s", ErrPageTooLarge, rawURL)
	}

	return string(data), resp.StatusCode, nil
}

// Download streams the body of rawURL into w and returns the number of bytes
// written. Media bodies are not paced or size limited.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.logger.Debug("download response", "status", resp.StatusCode, "url", rawURL)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, rawURL)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}
	return n, nil
}

func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// headerInjectingTransport wraps an http.RoundTripper to inject the session
// cookie, custom headers and User-Agent into every request.
type headerInjectingTransport struct {
	base       http.RoundTripper
	userAgent  string
	headers    map[string]string
	cookieHost string
	cookie     string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" && strings.EqualFold(clone.URL.Hostname(), t.cookieHost) {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	return t.base.RoundTrip(clone)
}

// isValidProxyAddress checks that address is "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
