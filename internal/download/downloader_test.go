package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/coursegrab/internal/model"
	"golang.org/x/crypto/sha3"
)

// httpGetter is a minimal Getter over net/http for tests.
type httpGetter struct {
	calls atomic.Int32
}

func (g *httpGetter) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	g.calls.Add(1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.Copy(w, resp.Body)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video.mp4":
			_, _ = w.Write([]byte("frames"))
		case "/slow.mp4":
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte("slow"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloader_IfNotExists(t *testing.T) {
	t.Parallel()

	t.Run("downloads and renames into place", func(t *testing.T) {
		t.Parallel()

		srv := newMediaServer(t)
		g := &httpGetter{}
		d := New(g, WithLogger(quietLogger()))
		dest := filepath.Join(t.TempDir(), "Курс", "Модуль", "1_Intro.mp4")

		res, err := d.IfNotExists(t.Context(), srv.URL+"/video.mp4", dest)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != model.DownloadStatusDownloaded {
			t.Errorf("Status = %v, want downloaded", res.Status)
		}
		if res.Bytes != int64(len("frames")) {
			t.Errorf("Bytes = %d", res.Bytes)
		}
		sum := sha3.Sum256([]byte("frames"))
		if res.SHA3 != hex.EncodeToString(sum[:]) {
			t.Errorf("SHA3 = %s", res.SHA3)
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "frames" {
			t.Errorf("file content = %q", data)
		}
		if _, err := os.Stat(dest + TempSuffix); !os.IsNotExist(err) {
			t.Error("temp file left behind")
		}
	})

	t.Run("existing destination performs no request", func(t *testing.T) {
		t.Parallel()

		g := &httpGetter{}
		d := New(g, WithLogger(quietLogger()))
		dest := filepath.Join(t.TempDir(), "done.mp4")
		if err := os.WriteFile(dest, []byte("old"), 0o600); err != nil {
			t.Fatal(err)
		}

		res, err := d.IfNotExists(t.Context(), "http://127.0.0.1:1/never", dest)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Status != model.DownloadStatusExisting {
			t.Errorf("Status = %v, want existing", res.Status)
		}
		if n := g.calls.Load(); n != 0 {
			t.Errorf("getter called %d times, want 0", n)
		}
	})

	t.Run("failure leaves no destination", func(t *testing.T) {
		t.Parallel()

		srv := newMediaServer(t)
		d := New(&httpGetter{}, WithLogger(quietLogger()))
		dest := filepath.Join(t.TempDir(), "missing.pdf")

		res, err := d.IfNotExists(t.Context(), srv.URL+"/missing.pdf", dest)
		if err == nil {
			t.Fatal("expected error")
		}
		if res.Status != model.DownloadStatusFailed || res.Error == "" {
			t.Errorf("result = %+v, want failed with message", res)
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("destination must not exist after failure")
		}
		if _, err := os.Stat(dest + TempSuffix); !os.IsNotExist(err) {
			t.Error("temp file must be removed after failure")
		}
	})

	t.Run("stale temp file is overwritten", func(t *testing.T) {
		t.Parallel()

		srv := newMediaServer(t)
		d := New(&httpGetter{}, WithLogger(quietLogger()))
		dest := filepath.Join(t.TempDir(), "v.mp4")
		if err := os.WriteFile(dest+TempSuffix, []byte("partial-garbage-from-last-run"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := d.IfNotExists(t.Context(), srv.URL+"/video.mp4", dest); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "frames" {
			t.Errorf("file content = %q", data)
		}
	})

	t.Run("dry run plans without transfer", func(t *testing.T) {
		t.Parallel()

		g := &httpGetter{}
		d := New(g, WithLogger(quietLogger()), WithDryRun(true))
		dest := filepath.Join(t.TempDir(), "v.mp4")

		res, err := d.IfNotExists(t.Context(), "http://example.test/v.mp4", dest)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != model.DownloadStatusPlanned {
			t.Errorf("Status = %v, want planned", res.Status)
		}
		if g.calls.Load() != 0 {
			t.Error("dry run must not transfer")
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("dry run must not create the destination")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		t.Parallel()

		d := New(&httpGetter{}, WithLogger(quietLogger()))
		_, err := d.IfNotExists(t.Context(), "", filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, ErrNoURL) {
			t.Errorf("expected ErrNoURL, got %v", err)
		}
	})

	t.Run("concurrent calls for one path share a transfer", func(t *testing.T) {
		t.Parallel()

		srv := newMediaServer(t)
		g := &httpGetter{}
		d := New(g, WithLogger(quietLogger()))
		dest := filepath.Join(t.TempDir(), "slow.mp4")

		var wg sync.WaitGroup
		for range 5 {
			wg.Go(func() {
				if _, err := d.IfNotExists(t.Context(), srv.URL+"/slow.mp4", dest); err != nil {
					t.Error(err)
				}
			})
		}
		wg.Wait()

		if n := g.calls.Load(); n != 1 {
			t.Errorf("getter called %d times, want 1", n)
		}
	})
}

func TestDownloader_Run(t *testing.T) {
	t.Parallel()

	t.Run("failures do not stop siblings", func(t *testing.T) {
		t.Parallel()

		srv := newMediaServer(t)
		dir := t.TempDir()
		d := New(&httpGetter{}, WithLogger(quietLogger()), WithConcurrency(2))

		jobs := []model.Job{
			{Kind: model.JobKindVideo, URL: srv.URL + "/video.mp4", Path: filepath.Join(dir, "1.mp4")},
			{Kind: model.JobKindFile, URL: srv.URL + "/gone.pdf", Path: filepath.Join(dir, "files", "notes.pdf")},
			{Kind: model.JobKindVideo, URL: srv.URL + "/slow.mp4", Path: filepath.Join(dir, "2.mp4")},
		}

		results := d.Run(t.Context(), jobs)
		if len(results) != len(jobs) {
			t.Fatalf("got %d results, want %d", len(results), len(jobs))
		}

		want := []model.DownloadStatus{
			model.DownloadStatusDownloaded,
			model.DownloadStatusFailed,
			model.DownloadStatusDownloaded,
		}
		for i, res := range results {
			if res.Status != want[i] {
				t.Errorf("results[%d].Status = %v, want %v", i, res.Status, want[i])
			}
			if res.Job != jobs[i] {
				t.Errorf("results[%d].Job = %+v, want %+v", i, res.Job, jobs[i])
			}
		}
	})

	t.Run("cancelled context fails every job", func(t *testing.T) {
		t.Parallel()

		g := &httpGetter{}
		d := New(g, WithLogger(quietLogger()))
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		results := d.Run(ctx, []model.Job{
			{URL: "http://example.test/a", Path: filepath.Join(t.TempDir(), "a")},
		})
		if results[0].Status != model.DownloadStatusFailed {
			t.Errorf("Status = %v, want failed", results[0].Status)
		}
		if g.calls.Load() != 0 {
			t.Error("no transfer expected after cancellation")
		}
	})
}

func TestDownloader_RunSharedDestination(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T) (*httptest.Server, *sync.Map) {
		t.Helper()
		var requested sync.Map
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested.Store(r.URL.Path, true)
			switch r.URL.Path {
			case "/a.pdf":
				_, _ = w.Write([]byte("first notes"))
			case "/b.pdf":
				_, _ = w.Write([]byte("second notes"))
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(srv.Close)
		return srv, &requested
	}

	t.Run("first job owns the file", func(t *testing.T) {
		t.Parallel()

		srv, requested := newServer(t)
		dest := filepath.Join(t.TempDir(), "files", "Notes.pdf")
		d := New(&httpGetter{}, WithLogger(quietLogger()), WithConcurrency(2))

		results := d.Run(t.Context(), []model.Job{
			{Kind: model.JobKindFile, URL: srv.URL + "/a.pdf", Path: dest},
			{Kind: model.JobKindFile, URL: srv.URL + "/b.pdf", Path: dest},
		})

		if results[0].Status != model.DownloadStatusDownloaded {
			t.Errorf("results[0].Status = %v, want downloaded", results[0].Status)
		}
		if results[1].Status != model.DownloadStatusExisting {
			t.Errorf("results[1].Status = %v, want existing", results[1].Status)
		}
		if results[1].SHA3 != "" || results[1].Bytes != 0 {
			t.Errorf("skipped job carries transfer data: %+v", results[1])
		}
		if _, ok := requested.Load("/b.pdf"); ok {
			t.Error("second URL must not be requested")
		}
		got, err := os.ReadFile(dest) //nolint:gosec // test path
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "first notes" {
			t.Errorf("file content = %q, want first job's body", got)
		}
	})

	t.Run("next job takes over after a failure", func(t *testing.T) {
		t.Parallel()

		srv, _ := newServer(t)
		dest := filepath.Join(t.TempDir(), "Notes.pdf")
		d := New(&httpGetter{}, WithLogger(quietLogger()), WithConcurrency(2))

		results := d.Run(t.Context(), []model.Job{
			{Kind: model.JobKindFile, URL: srv.URL + "/gone.pdf", Path: dest},
			{Kind: model.JobKindFile, URL: srv.URL + "/b.pdf", Path: dest},
		})

		if results[0].Status != model.DownloadStatusFailed {
			t.Errorf("results[0].Status = %v, want failed", results[0].Status)
		}
		if results[1].Status != model.DownloadStatusDownloaded {
			t.Errorf("results[1].Status = %v, want downloaded", results[1].Status)
		}
	})

	t.Run("dry run plans the destination once", func(t *testing.T) {
		t.Parallel()

		srv, _ := newServer(t)
		dest := filepath.Join(t.TempDir(), "Notes.pdf")
		d := New(&httpGetter{}, WithLogger(quietLogger()), WithDryRun(true))

		results := d.Run(t.Context(), []model.Job{
			{URL: srv.URL + "/a.pdf", Path: dest},
			{URL: srv.URL + "/b.pdf", Path: dest},
		})

		if results[0].Status != model.DownloadStatusPlanned {
			t.Errorf("results[0].Status = %v, want planned", results[0].Status)
		}
		if results[1].Status != model.DownloadStatusExisting {
			t.Errorf("results[1].Status = %v, want existing", results[1].Status)
		}
	})
}

func TestDownloader_IfNotExistsRacingURLs(t *testing.T) {
	t.Parallel()

	srv := newMediaServer(t)
	d := New(&httpGetter{}, WithLogger(quietLogger()))
	dest := filepath.Join(t.TempDir(), "lesson.mp4")

	urls := []string{srv.URL + "/slow.mp4", srv.URL + "/video.mp4"}
	results := make([]model.DownloadResult, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Go(func() {
			res, err := d.IfNotExists(t.Context(), u, dest)
			if err != nil {
				t.Error(err)
			}
			results[i] = res
		})
	}
	wg.Wait()

	downloaded := 0
	for i, res := range results {
		if res.Job.URL != urls[i] {
			t.Errorf("results[%d].Job.URL = %q, want %q", i, res.Job.URL, urls[i])
		}
		switch res.Status {
		case model.DownloadStatusDownloaded:
			downloaded++
		case model.DownloadStatusExisting:
			if res.SHA3 != "" {
				t.Errorf("existing result for %s carries a digest", urls[i])
			}
		default:
			t.Errorf("results[%d].Status = %v", i, res.Status)
		}
	}
	if downloaded != 1 {
		t.Errorf("%d results downloaded, want exactly 1", downloaded)
	}
}
