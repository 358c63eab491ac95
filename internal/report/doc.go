// Package report renders a finished grab run.
//
// Three formats are available:
//   - SimpleWriter: plain text summary for the terminal
//   - MarkdownWriter: Markdown with a mermaid chart of download outcomes
//   - JSONWriter: the full run report for other tools
//
// Writers implement the Writer interface, so they can be combined with
// MultiWriter to print a summary and save a file in one pass.
package report
