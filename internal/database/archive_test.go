package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/coursegrab/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *ArchiveDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		want := filepath.Join(dbDir, FileName)
		if db.Path() != want {
			t.Errorf("Path() = %q, want %q", db.Path(), want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error message: %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !errors.Is(statErr, os.ErrNotExist) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		page := model.Page{URL: "https://example.com/teach/control", Kind: model.PageKindStreamCatalog}
		if err := db1.UpsertPage(ctx, page); err != nil {
			t.Fatalf("UpsertPage() error = %v", err)
		}
		_ = db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		got, err := db2.GetPage(ctx, page.URL)
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if got == nil {
			t.Fatal("expected page to persist")
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

func TestUpsertAndGetPage(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	visited := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	page := model.Page{
		URL:       "https://example.com/teach/control/lesson/view?id=10",
		Kind:      model.PageKindModule,
		Title:     "Урок 1. Основы",
		Dir:       "download/Курс 1/Урок 1/Урок 1. Основы",
		Depth:     2,
		FromCache: true,
		VisitedAt: visited,
	}
	if err := db.UpsertPage(ctx, page); err != nil {
		t.Fatalf("UpsertPage() error = %v", err)
	}

	got, err := db.GetPage(ctx, page.URL)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected page, got nil")
	}
	if got.Kind != model.PageKindModule || got.Title != page.Title || got.Dir != page.Dir {
		t.Errorf("GetPage() = %+v", got)
	}
	if got.Depth != 2 || !got.FromCache {
		t.Errorf("depth/from_cache not stored: %+v", got)
	}
	if !got.VisitedAt.Equal(visited) {
		t.Errorf("VisitedAt = %v, want %v", got.VisitedAt, visited)
	}

	t.Run("upsert replaces the row", func(t *testing.T) {
		page.Title = "renamed"
		page.FromCache = false
		if err := db.UpsertPage(ctx, page); err != nil {
			t.Fatalf("UpsertPage() error = %v", err)
		}
		got, err := db.GetPage(ctx, page.URL)
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if got.Title != "renamed" || got.FromCache {
			t.Errorf("page not updated: %+v", got)
		}
	})

	t.Run("unknown url returns nil", func(t *testing.T) {
		got, err := db.GetPage(ctx, "https://example.com/missing")
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func downloadResult(path string, status model.DownloadStatus, bytes int64, digest string) model.DownloadResult {
	return model.DownloadResult{
		Job: model.Job{
			Kind: model.JobKindVideo,
			URL:  "https://cdn.example.com/video.mp4",
			Path: path,
		},
		Status:     status,
		Bytes:      bytes,
		SHA3:       digest,
		FinishedAt: time.Now(),
	}
}

func TestUpsertDownload(t *testing.T) {
	t.Parallel()

	t.Run("stores and looks up by path", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		d := downloadResult("out/m/0_Intro.mp4", model.DownloadStatusDownloaded, 1024, "abc123")
		if err := db.UpsertDownload(ctx, d); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}

		got, err := db.GetDownloadByPath(ctx, d.Job.Path)
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if got == nil {
			t.Fatal("expected record, got nil")
		}
		if got.Status != model.DownloadStatusDownloaded || got.Bytes != 1024 || got.SHA3 != "abc123" {
			t.Errorf("GetDownloadByPath() = %+v", got)
		}
		if got.Kind != model.JobKindVideo || got.URL != d.Job.URL {
			t.Errorf("kind/url not stored: %+v", got)
		}
	})

	t.Run("existing outcome keeps the transferred digest", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		path := "out/m/0_Intro.mp4"
		if err := db.UpsertDownload(ctx, downloadResult(path, model.DownloadStatusDownloaded, 2048, "feed")); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}
		if err := db.UpsertDownload(ctx, downloadResult(path, model.DownloadStatusExisting, 0, "")); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}

		got, err := db.GetDownloadByPath(ctx, path)
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if got.Status != model.DownloadStatusDownloaded || got.Bytes != 2048 || got.SHA3 != "feed" {
			t.Errorf("record overwritten by existing outcome: %+v", got)
		}
	})

	t.Run("existing outcome for another URL keeps the source", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		path := "out/m/files/Notes.pdf"
		first := downloadResult(path, model.DownloadStatusDownloaded, 11, "beef")
		first.Job.Kind = model.JobKindFile
		first.Job.URL = "https://example.com/a.pdf"
		second := downloadResult(path, model.DownloadStatusExisting, 0, "")
		second.Job.URL = "https://example.com/b.pdf"

		for _, d := range []model.DownloadResult{first, second} {
			if err := db.UpsertDownload(ctx, d); err != nil {
				t.Fatalf("UpsertDownload() error = %v", err)
			}
		}

		got, err := db.GetDownloadByPath(ctx, path)
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if got.URL != first.Job.URL || got.Kind != model.JobKindFile || got.SHA3 != "beef" {
			t.Errorf("record = %+v, want source of the first transfer", got)
		}
	})

	t.Run("failure after success replaces status", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		path := "out/m/files/notes.pdf"
		if err := db.UpsertDownload(ctx, downloadResult(path, model.DownloadStatusDownloaded, 10, "aa")); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}
		failed := downloadResult(path, model.DownloadStatusFailed, 0, "")
		failed.Error = "unexpected status: 403"
		if err := db.UpsertDownload(ctx, failed); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}

		got, err := db.GetDownloadByPath(ctx, path)
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if got.Status != model.DownloadStatusFailed || got.Error != failed.Error {
			t.Errorf("GetDownloadByPath() = %+v", got)
		}
	})

	t.Run("unknown path returns nil", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		got, err := db.GetDownloadByPath(context.Background(), "nope")
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestListDownloads(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	results := []model.DownloadResult{
		downloadResult("a.mp4", model.DownloadStatusDownloaded, 1, "01"),
		downloadResult("b.mp4", model.DownloadStatusFailed, 0, ""),
		downloadResult("c.mp4", model.DownloadStatusExisting, 0, ""),
	}
	for _, r := range results {
		if err := db.UpsertDownload(ctx, r); err != nil {
			t.Fatalf("UpsertDownload() error = %v", err)
		}
	}

	all, err := db.ListDownloads(ctx, false)
	if err != nil {
		t.Fatalf("ListDownloads() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListDownloads(false) returned %d records, want 3", len(all))
	}

	failed, err := db.ListDownloads(ctx, true)
	if err != nil {
		t.Fatalf("ListDownloads() error = %v", err)
	}
	if len(failed) != 1 || failed[0].Path != "b.mp4" {
		t.Errorf("ListDownloads(true) = %+v, want only b.mp4", failed)
	}
}

func newFinishedReport() *model.RunReport {
	report := model.NewRunReport("https://example.com/teach/control", "download")
	report.AddPage(model.Page{URL: "https://example.com/teach/control", Kind: model.PageKindStreamCatalog, VisitedAt: time.Now()})
	report.AddPage(model.Page{URL: "https://example.com/lesson?id=1", Kind: model.PageKindModule, Title: "Урок 1", VisitedAt: time.Now()})
	report.AddDownload(downloadResult("download/Урок 1/0.mp4", model.DownloadStatusDownloaded, 500, "beef"))
	report.AddDownload(downloadResult("download/Урок 1/1.mp4", model.DownloadStatusFailed, 0, ""))
	report.AddProblem("https://example.com/lesson?id=2", errors.New("not found"))
	report.Finish()
	return report
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newFinishedReport()
	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("SaveRun() id = %d, want > 0", id)
	}

	t.Run("pages and downloads are upserted", func(t *testing.T) {
		page, err := db.GetPage(ctx, "https://example.com/lesson?id=1")
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if page == nil || page.Title != "Урок 1" {
			t.Errorf("GetPage() = %+v", page)
		}

		d, err := db.GetDownloadByPath(ctx, "download/Урок 1/0.mp4")
		if err != nil {
			t.Fatalf("GetDownloadByPath() error = %v", err)
		}
		if d == nil || d.Bytes != 500 {
			t.Errorf("GetDownloadByPath() = %+v", d)
		}
	})

	t.Run("run summary is listed", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("ListRuns() returned %d runs, want 1", len(runs))
		}
		run := runs[0]
		if run.ID != id || run.RunID != report.ID || run.RootURL != report.RootURL || run.DownloadDir != "download" {
			t.Errorf("run = %+v", run)
		}
		if run.Pages != 2 || run.Downloaded != 1 || run.Failed != 1 || run.Problems != 1 {
			t.Errorf("counters = %+v", run)
		}
		if run.Bytes != 500 {
			t.Errorf("Bytes = %d, want 500", run.Bytes)
		}
		if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
			t.Errorf("timestamps not stored: %+v", run)
		}
	})

	t.Run("full report round trips", func(t *testing.T) {
		got, err := db.GetRunReport(ctx, id)
		if err != nil {
			t.Fatalf("GetRunReport() error = %v", err)
		}
		if got == nil {
			t.Fatal("expected report, got nil")
		}
		if len(got.Pages) != 2 || len(got.Downloads) != 2 || len(got.Problems) != 1 {
			t.Errorf("GetRunReport() = %+v", got)
		}

		missing, err := db.GetRunReport(ctx, id+100)
		if err != nil {
			t.Fatalf("GetRunReport() error = %v", err)
		}
		if missing != nil {
			t.Errorf("expected nil for unknown id, got %+v", missing)
		}
	})
}

func TestSaveRunTwice(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newFinishedReport()
	if _, err := db.SaveRun(ctx, report); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if _, err := db.SaveRun(ctx, report); err == nil {
		t.Error("expected error when saving the same run twice")
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns() returned %d runs, want 1", len(runs))
	}
}

func TestListRunsLimit(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for range 3 {
		if _, err := db.SaveRun(ctx, newFinishedReport()); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(2) returned %d runs", len(runs))
	}
	if runs[0].ID < runs[1].ID {
		t.Errorf("runs not newest first: %d before %d", runs[0].ID, runs[1].ID)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "rfc3339 nano", input: "2026-03-01T10:00:00.123456789Z"},
		{name: "sqlite default", input: "2026-03-01 10:00:00"},
		{name: "rfc3339", input: "2026-03-01T10:00:00+03:00"},
		{name: "empty", input: "", zero: true},
		{name: "garbage", input: "yesterday", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v, zero want %v", tt.input, got, tt.zero)
			}
		})
	}
}
