package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunReport collects everything that happened during one grab run.
//
// The Add methods are safe for concurrent use because downloads of a module
// finish on separate goroutines. Read the exported fields only after the run
// has finished.
type RunReport struct {
	// ID identifies the run across report files and the archive database.
	ID string `json:"id"`

	// RootURL is the page the run started from.
	RootURL string `json:"root_url"`

	// DownloadDir is the root of the local directory tree.
	DownloadDir string `json:"download_dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// DryRun is true when nothing was downloaded.
	DryRun bool `json:"dry_run"`

	// Pages lists visited pages in visiting order.
	Pages []Page `json:"pages"`

	// Downloads lists the outcome of every download job.
	Downloads []DownloadResult `json:"downloads"`

	// Problems holds per-item failures that did not stop the run
	// (unreachable pages, unresolvable videos, ...).
	Problems []Problem `json:"problems,omitempty"`

	// Cancelled is true when the run stopped early because its context ended.
	Cancelled bool `json:"cancelled"`

	mu sync.Mutex
}

// Problem is a non-fatal failure tied to a URL.
type Problem struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// NewRunReport creates a report for a run starting now.
func NewRunReport(rootURL, downloadDir string) *RunReport {
	return &RunReport{
		ID:          uuid.NewString(),
		RootURL:     rootURL,
		DownloadDir: downloadDir,
		StartedAt:   time.Now(),
		Pages:       make([]Page, 0),
		Downloads:   make([]DownloadResult, 0),
	}
}

// AddPage records a visited page.
func (r *RunReport) AddPage(p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages = append(r.Pages, p)
}

// AddDownload records a download outcome.
func (r *RunReport) AddDownload(d DownloadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Downloads = append(r.Downloads, d)
}

// AddProblem records a non-fatal failure.
func (r *RunReport) AddProblem(url string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Problems = append(r.Problems, Problem{URL: url, Message: err.Error()})
}

// Finish stamps the end time.
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or zero while it is still running.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DownloadCounts returns the number of downloads per status.
func (r *RunReport) DownloadCounts() map[DownloadStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[DownloadStatus]int, 4)
	for _, d := range r.Downloads {
		counts[d.Status]++
	}
	return counts
}

// PageCounts returns the number of visited pages per kind.
func (r *RunReport) PageCounts() map[PageKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[PageKind]int, 4)
	for _, p := range r.Pages {
		counts[p.Kind]++
	}
	return counts
}

// BytesDownloaded returns the total size of files transferred in this run.
func (r *RunReport) BytesDownloaded() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, d := range r.Downloads {
		if d.Status == DownloadStatusDownloaded {
			total += d.Bytes
		}
	}
	return total
}

// HasFailures reports whether any download failed or any problem was recorded.
func (r *RunReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Problems) > 0 {
		return true
	}
	for _, d := range r.Downloads {
		if d.Status == DownloadStatusFailed {
			return true
		}
	}
	return false
}
