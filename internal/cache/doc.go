// Package cache stores fetched HTML pages on disk so a rerun of the grabber
// reads pages it has already seen instead of requesting them again.
//
// A page's location under the cache directory is derived from its URL by
// PathFor. Entries never expire; delete the cache directory to refresh.
package cache
