// Package main provides the entry point for the coursegrab CLI.
//
// coursegrab walks the catalog pages of a course site with the user's
// browser session, finds lesson pages, and downloads their videos and
// attached files into a local directory tree.
//
// Usage:
//
//	coursegrab grab [root-url]
//	coursegrab history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
