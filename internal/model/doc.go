// Package model defines the data structures shared by the crawler, the
// downloader, the archive database and the report writers.
//
// This package contains the following main types:
//   - Page: A fetched and classified site page
//   - VideoSource, Heading, Attachment: Elements scraped from a module page
//   - Job and DownloadResult: A single file transfer and its outcome
//   - RunReport: Everything that happened during one grab run
//
// The models are kept in their own package so that crawler, database and
// report can share them without import cycles. All of them serialize to JSON
// for report output and database storage.
package model
