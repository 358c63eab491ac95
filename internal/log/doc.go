// Package log provides an slog handler that masks secrets before they reach
// the log output.
//
// The crawler runs with the site's session cookies and resolves media URLs
// that carry expiring signatures in their query string. Neither should end up
// in a log file that may be shared when reporting a broken page, so every
// record passes through SecureHandler:
//   - attributes whose key names a cookie, header or credential are masked
//   - site session cookie names (PHPSESSID*, chtm-token, gc_visitor_*) are masked
//   - signed media URLs (Vimeo CDN, googlevideo) keep their path but lose the query
//   - bearer/basic credentials and JWTs are masked wherever they appear
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("fetched", "status", 200, "url", pageURL)
package log
