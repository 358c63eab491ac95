package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/nao1215/coursegrab/internal/database"
	"github.com/nao1215/coursegrab/internal/model"
)

func seedDatabase(t *testing.T) (string, int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r := model.NewRunReport("https://example.com/teach/control", "download")
	r.AddDownload(model.DownloadResult{
		Job:    model.Job{Kind: model.JobKindVideo, URL: "https://cdn.example.com/a.mp4", Path: "download/m/0_Intro.mp4"},
		Status: model.DownloadStatusDownloaded,
		Bytes:  42,
		SHA3:   "c0ffee",
	})
	r.AddDownload(model.DownloadResult{
		Job:    model.Job{Kind: model.JobKindFile, URL: "https://example.com/b.pdf", Path: "download/m/files/b.pdf"},
		Status: model.DownloadStatusFailed,
		Error:  "unexpected status: 404 Not Found",
	})
	r.Finish()

	id, err := db.SaveRun(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	return dir, id
}

func runHistory(t *testing.T, args ...string) string {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"history"}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return out.String()
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("no database yet", func(t *testing.T) {
		t.Parallel()

		out := runHistory(t, "--db-dir", t.TempDir())
		if !strings.Contains(out, "No runs recorded yet.") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()

		dir, id := seedDatabase(t)
		out := runHistory(t, "--db-dir", dir)
		if !strings.Contains(out, "https://example.com/teach/control") {
			t.Errorf("expected root url in output:\n%s", out)
		}
		if !strings.Contains(out, "1/0/1") {
			t.Errorf("expected file counters in output:\n%s", out)
		}
		if !strings.Contains(out, strconv.FormatInt(id, 10)) {
			t.Errorf("expected run id in output:\n%s", out)
		}
	})

	t.Run("lists failed downloads", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedDatabase(t)
		out := runHistory(t, "--db-dir", dir, "--downloads", "--failed")
		if !strings.Contains(out, "[failed] download/m/files/b.pdf") {
			t.Errorf("expected failed download:\n%s", out)
		}
		if strings.Contains(out, "0_Intro.mp4") {
			t.Error("successful download should not be listed with --failed")
		}
	})

	t.Run("lists all downloads with digest", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedDatabase(t)
		out := runHistory(t, "--db-dir", dir, "--downloads")
		if !strings.Contains(out, "sha3-256:c0ffee") {
			t.Errorf("expected digest:\n%s", out)
		}
	})

	t.Run("shows a run report", func(t *testing.T) {
		t.Parallel()

		dir, id := seedDatabase(t)
		out := runHistory(t, "--db-dir", dir, "--run", strconv.FormatInt(id, 10))
		if !strings.Contains(out, "COURSEGRAB REPORT") || !strings.Contains(out, "404 Not Found") {
			t.Errorf("expected run report:\n%s", out)
		}

		jsonOut := runHistory(t, "--db-dir", dir, "--run", strconv.FormatInt(id, 10), "--json")
		if !strings.Contains(jsonOut, `"status": "failed"`) {
			t.Errorf("expected JSON report:\n%s", jsonOut)
		}
	})

	t.Run("unknown run id", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedDatabase(t)
		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{"history", "--db-dir", dir, "--run", "999"})
		if err := root.Execute(); err == nil {
			t.Error("expected error for unknown run")
		}
	})
}
