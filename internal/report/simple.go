package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/coursegrab/internal/model"
)

// SimpleWriter outputs a human-readable text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose lists every download, not only the failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables listing of every download.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder
	summary := NewSummary(report)

	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	w.writeDownloads(&sb, report)
	w.writeProblems(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport, summary Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         COURSEGRAB REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", report.ID)
	fmt.Fprintf(sb, "Root URL:       %s\n", report.RootURL)
	fmt.Fprintf(sb, "Download Dir:   %s\n", report.DownloadDir)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if summary.Duration > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", summary.Duration.Round(100*time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report, summary))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary Summary) {
	writeSection(sb, "SUMMARY")

	fmt.Fprintf(sb, "  PAGES:       %d", summary.Pages)
	if summary.Pages > 0 {
		fmt.Fprintf(sb, " (modules: %d, catalogs: %d)",
			summary.PagesByKind[model.PageKindModule.String()],
			summary.PagesByKind[model.PageKindStreamCatalog.String()]+summary.PagesByKind[model.PageKindLinkCatalog.String()])
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  DOWNLOADED:  %d (%s)\n", summary.Downloaded, formatBytes(summary.Bytes))
	fmt.Fprintf(sb, "  EXISTING:    %d\n", summary.Existing)
	fmt.Fprintf(sb, "  FAILED:      %d\n", summary.Failed)
	if summary.Planned > 0 {
		fmt.Fprintf(sb, "  PLANNED:     %d\n", summary.Planned)
	}
	fmt.Fprintf(sb, "  PROBLEMS:    %d\n", summary.Problems)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDownloads(sb *strings.Builder, report *model.RunReport) {
	listed := make([]model.DownloadResult, 0, len(report.Downloads))
	for _, d := range report.Downloads {
		if w.verbose || d.Status == model.DownloadStatusFailed || d.Status == model.DownloadStatusPlanned {
			listed = append(listed, d)
		}
	}
	if len(listed) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "DOWNLOADS")

	if len(listed) == 0 {
		sb.WriteString("  Nothing to list\n\n")
		return
	}

	for _, d := range listed {
		fmt.Fprintf(sb, "  [%s] %s\n", statusIndicator(d.Status), d.Job.Path)
		if d.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", d.Error)
		}
		if w.verbose && d.SHA3 != "" {
			fmt.Fprintf(sb, "    SHA3-256: %s\n", d.SHA3)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProblems(sb *strings.Builder, report *model.RunReport) {
	if len(report.Problems) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PROBLEMS")

	if len(report.Problems) == 0 {
		sb.WriteString("  No problems\n\n")
		return
	}
	for _, p := range report.Problems {
		fmt.Fprintf(sb, "  * %s\n    %s\n", p.URL, p.Message)
	}
	sb.WriteString("\n")
}

// statusIndicator returns a short marker for a download status.
func statusIndicator(status model.DownloadStatus) string {
	switch status {
	case model.DownloadStatusDownloaded:
		return "+"
	case model.DownloadStatusExisting:
		return "="
	case model.DownloadStatusFailed:
		return "!"
	case model.DownloadStatusPlanned:
		return "?"
	default:
		return " "
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
