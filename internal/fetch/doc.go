// Package fetch provides the cookie-authenticated HTTP client used for every
// network request the grabber makes.
//
// The course site only serves lesson pages to a logged-in browser session, so
// the client carries the session cookies exported from the browser. They are
// sent as one raw Cookie header, unchanged, and only to the site's host.
// Cookies the site sets later live in a public-suffix aware cookie jar. The
// configured headers and User-Agent are injected into every request,
// including redirects. An optional SOCKS5 proxy and a request pacer are
// available for slow or shared connections.
package fetch
