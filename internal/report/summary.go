package report

import (
	"fmt"
	"time"

	"github.com/nao1215/coursegrab/internal/model"
)

// Summary holds the counters every format prints.
type Summary struct {
	Pages       int            `json:"pages"`
	PagesByKind map[string]int `json:"pages_by_kind"`
	Downloaded  int            `json:"downloaded"`
	Existing    int            `json:"existing"`
	Failed      int            `json:"failed"`
	Planned     int            `json:"planned"`
	Bytes       int64          `json:"bytes"`
	Problems    int            `json:"problems"`
	Duration    time.Duration  `json:"duration_ns"`
}

// NewSummary computes the counters of a run.
func NewSummary(report *model.RunReport) Summary {
	counts := report.DownloadCounts()
	kinds := report.PageCounts()

	byKind := make(map[string]int, len(kinds))
	pages := 0
	for kind, n := range kinds {
		byKind[kind.String()] = n
		pages += n
	}

	return Summary{
		Pages:       pages,
		PagesByKind: byKind,
		Downloaded:  counts[model.DownloadStatusDownloaded],
		Existing:    counts[model.DownloadStatusExisting],
		Failed:      counts[model.DownloadStatusFailed],
		Planned:     counts[model.DownloadStatusPlanned],
		Bytes:       report.BytesDownloaded(),
		Problems:    len(report.Problems),
		Duration:    report.Duration(),
	}
}

// Jobs returns the number of download jobs.
func (s Summary) Jobs() int {
	return s.Downloaded + s.Existing + s.Failed + s.Planned
}

// statusText is the one-line outcome shared by text and Markdown output.
func statusText(report *model.RunReport, s Summary) string {
	switch {
	case report.Cancelled:
		return "Cancelled (partial results)"
	case report.DryRun:
		return "Dry run (nothing downloaded)"
	case s.Failed > 0 || s.Problems > 0:
		return "Completed with errors"
	default:
		return "Complete"
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
