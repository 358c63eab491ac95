package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/coursegrab/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// TempSuffix is appended to the destination while a transfer is in progress.
const TempSuffix = ".tmp_"

// Getter streams a remote body into w.
type Getter interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Downloader fetches jobs into their destination paths.
type Downloader struct {
	getter      Getter
	logger      *slog.Logger
	concurrency int
	dryRun      bool
	group       singleflight.Group
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithConcurrency sets how many jobs Run transfers at once. Default is 1.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// WithDryRun makes the Downloader report missing files as planned without
// transferring them.
func WithDryRun(dryRun bool) Option {
	return func(d *Downloader) { d.dryRun = dryRun }
}

// New creates a Downloader that transfers bodies with getter.
func New(getter Getter, opts ...Option) *Downloader {
	d := &Downloader{getter: getter, concurrency: 1}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// IfNotExists downloads url to path unless path already exists, in which case
// no request is made. Failed transfers leave no file at path and are
// returned as an error together with a failed result. Concurrent calls for
// the same path share one transfer; a caller whose url lost that race gets
// an existing result, or retries with its own url if the shared one failed.
func (d *Downloader) IfNotExists(ctx context.Context, url, path string) (model.DownloadResult, error) {
	job := model.Job{URL: url, Path: path}

	res, shared, err := d.do(ctx, job)
	if shared && res.Job.URL != url {
		if res.Status == model.DownloadStatusFailed {
			res, _, err = d.do(ctx, job)
		} else {
			res, err = duplicateOf(job, res), nil
		}
	}
	res.Job = job
	return res, err
}

func (d *Downloader) do(ctx context.Context, job model.Job) (model.DownloadResult, bool, error) {
	v, err, shared := d.group.Do(job.Path, func() (any, error) {
		return d.fetch(ctx, job)
	})
	return v.(model.DownloadResult), shared, err //nolint:forcetypeassert // fetch always returns a result
}

// duplicateOf reports job as skipped because an earlier job already claimed
// its destination. Size and digest belong to the earlier job and are not copied.
func duplicateOf(job model.Job, prev model.DownloadResult) model.DownloadResult {
	return model.DownloadResult{
		Job:        job,
		Status:     model.DownloadStatusExisting,
		FinishedAt: prev.FinishedAt,
	}
}

func (d *Downloader) fetch(ctx context.Context, job model.Job) (model.DownloadResult, error) {
	res := model.DownloadResult{Job: job}
	finish := func(status model.DownloadStatus, err error) (model.DownloadResult, error) {
		res.Status = status
		res.FinishedAt = time.Now()
		if err != nil {
			res.Error = err.Error()
		}
		return res, err
	}

	if _, err := os.Stat(job.Path); err == nil {
		return finish(model.DownloadStatusExisting, nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return finish(model.DownloadStatusFailed, fmt.Errorf("failed to stat %s: %w", job.Path, err))
	}

	if job.URL == "" {
		return finish(model.DownloadStatusFailed, ErrNoURL)
	}

	if d.dryRun {
		d.logger.Info("would download", "url", job.URL, "path", job.Path)
		return finish(model.DownloadStatusPlanned, nil)
	}

	d.logger.Info("downloading", "url", job.URL, "path", job.Path)

	if err := os.MkdirAll(filepath.Dir(job.Path), 0o750); err != nil {
		return finish(model.DownloadStatusFailed, fmt.Errorf("failed to create directory: %w", err))
	}

	tmpPath := job.Path + TempSuffix
	f, err := os.Create(tmpPath) //nolint:gosec // destination is built from sanitized names
	if err != nil {
		return finish(model.DownloadStatusFailed, fmt.Errorf("failed to create temp file: %w", err))
	}

	h := sha3.New256()
	n, err := d.getter.Download(ctx, job.URL, io.MultiWriter(f, h))
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort cleanup
		return finish(model.DownloadStatusFailed, err)
	}

	if err := os.Rename(tmpPath, job.Path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort cleanup
		return finish(model.DownloadStatusFailed, fmt.Errorf("failed to move download into place: %w", err))
	}

	res.Bytes = n
	res.SHA3 = hex.EncodeToString(h.Sum(nil))
	return finish(model.DownloadStatusDownloaded, nil)
}

// Run transfers jobs with bounded concurrency and returns one result per job,
// in job order. Jobs sharing a destination run one after another in job
// order, so the first one that succeeds owns the file and the rest report
// existing. A failed job is logged and does not stop the others; only
// context cancellation ends the run early, marking unstarted jobs failed.
func (d *Downloader) Run(ctx context.Context, jobs []model.Job) []model.DownloadResult {
	results := make([]model.DownloadResult, len(jobs))

	byPath := make(map[string][]int, len(jobs))
	var paths []string
	for i, job := range jobs {
		if _, ok := byPath[job.Path]; !ok {
			paths = append(paths, job.Path)
		}
		byPath[job.Path] = append(byPath[job.Path], i)
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, path := range paths {
		g.Go(func() error {
			var claimed *model.DownloadResult
			for _, i := range byPath[path] {
				job := jobs[i]
				switch {
				case ctx.Err() != nil:
					results[i] = model.DownloadResult{
						Job:        job,
						Status:     model.DownloadStatusFailed,
						Error:      ctx.Err().Error(),
						FinishedAt: time.Now(),
					}
				case claimed != nil:
					results[i] = duplicateOf(job, *claimed)
				default:
					res, err := d.IfNotExists(ctx, job.URL, job.Path)
					res.Job = job
					if err != nil {
						d.logger.Warn("download failed", "url", job.URL, "path", job.Path, "error", err)
					} else if res.Status == model.DownloadStatusPlanned {
						claimed = &res
					}
					results[i] = res
				}
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	return results
}
