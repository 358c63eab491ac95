package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/coursegrab/internal/model"
)

// MarkdownWriter outputs a run report in Markdown, suitable for keeping next
// to the downloaded course.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, report, summary)
	w.writeModules(md, report)
	w.writeFailures(md, report)
	w.writeProblems(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport, summary Summary) {
	md.H1("Coursegrab Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.ID + "`"},
			{"Root URL", "`" + report.RootURL + "`"},
			{"Download Dir", "`" + report.DownloadDir + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Visited", strconv.Itoa(summary.Pages)},
			{"Status", statusText(report, summary)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.RunReport, summary Summary) {
	md.H2("Downloads")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(summary.Downloaded)},
			{"Already present", strconv.Itoa(summary.Existing)},
			{"Failed", strconv.Itoa(summary.Failed)},
			{"Planned", strconv.Itoa(summary.Planned)},
			{"**Total**", "**" + strconv.Itoa(summary.Jobs()) + "**"},
		},
	})
	md.PlainText("")
	md.PlainTextf("Transferred: %s", formatBytes(summary.Bytes))
	md.PlainText("")

	if summary.Jobs() > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, report, summary)
}

// writePieChart writes a mermaid pie chart of download outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.Downloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(summary.Downloaded))
	}
	if summary.Existing > 0 {
		chart.LabelAndIntValue("Already present", uint64(summary.Existing))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.Failed))
	}
	if summary.Planned > 0 {
		chart.LabelAndIntValue("Planned", uint64(summary.Planned))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport, summary Summary) {
	switch {
	case report.Cancelled:
		md.Warningf("The run was cancelled after %d page(s); run grab again to continue.", summary.Pages)
	case summary.Failed > 0:
		md.Cautionf("%d download(s) failed. Run grab again to retry them.", summary.Failed)
	case summary.Problems > 0:
		md.Importantf("%d page(s) or video(s) could not be processed.", summary.Problems)
	case report.DryRun:
		md.Note("Dry run: files were planned but not downloaded.")
	default:
		md.Tip("Every file is in place.")
	}
	md.PlainText("")
}

// writeModules lists module pages and the directory each one maps to.
func (w *MarkdownWriter) writeModules(md *markdown.Markdown, report *model.RunReport) {
	rows := make([][]string, 0)
	for _, p := range report.Pages {
		if p.Kind != model.PageKindModule {
			continue
		}
		rows = append(rows, []string{truncateString(p.Title, 60), "`" + p.Dir + "`"})
	}

	md.H2("Modules")
	md.PlainText("")
	if len(rows) == 0 {
		md.PlainText("No module pages visited.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Module", "Directory"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.RunReport) {
	rows := make([][]string, 0)
	for _, d := range report.Downloads {
		if d.Status != model.DownloadStatusFailed {
			continue
		}
		rows = append(rows, []string{"`" + d.Job.Path + "`", truncateString(d.Error, 60)})
	}
	if len(rows) == 0 {
		return
	}

	md.H2("Failed Downloads")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Destination", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Problems) == 0 {
		return
	}

	md.H2("Problems")
	md.PlainText("")
	items := make([]string, len(report.Problems))
	for i, p := range report.Problems {
		items[i] = p.URL + ": " + p.Message
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by coursegrab*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
