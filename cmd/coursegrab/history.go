package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/coursegrab/internal/config"
	"github.com/nao1215/coursegrab/internal/database"
	"github.com/nao1215/coursegrab/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded grab runs and downloads",
		Long: `History reads the archive database written by grab.

Without flags it lists the recorded runs, newest first. With --downloads it
lists every downloaded file with its size and SHA3-256 digest instead.

Examples:
  # List the last runs
  coursegrab history

  # Show the full report of run 3
  coursegrab history --run 3

  # List files that failed to download
  coursegrab history --downloads --failed`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("downloads", false,
		"List downloads instead of runs")
	cmd.Flags().Bool("failed", false,
		"With --downloads, list failed downloads only")
	cmd.Flags().Int64("run", 0,
		"Print the full report of the run with this ID")
	cmd.Flags().IntP("limit", "n", 20,
		"Number of runs to list (0 lists all)")
	cmd.Flags().Bool("json", false,
		"With --run, print the report as JSON")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the archive database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	showDownloads, err := flags.GetBool("downloads")
	if err != nil {
		return err
	}
	failedOnly, err := flags.GetBool("failed")
	if err != nil {
		return err
	}
	runID, err := flags.GetInt64("run")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded yet.")
		fmt.Fprintln(out, "\nUse 'coursegrab grab' to download a course.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case runID > 0:
		return showRun(ctx, db, runID, jsonOutput, out)
	case showDownloads:
		return listDownloads(ctx, db, failedOnly, out)
	default:
		return listRuns(ctx, db, limit, out)
	}
}

func listRuns(ctx context.Context, db *database.ArchiveDB, limit int, out io.Writer) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-6s  %-24s  %s\n", "ID", "Date", "Pages", "Files (new/old/failed)", "Root URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))

	for _, run := range runs {
		files := fmt.Sprintf("%d/%d/%d", run.Downloaded, run.Existing, run.Failed)
		var flags []string
		if run.DryRun {
			flags = append(flags, "dry-run")
		}
		if run.Cancelled {
			flags = append(flags, "cancelled")
		}
		if len(flags) > 0 {
			files += " (" + strings.Join(flags, ", ") + ")"
		}

		fmt.Fprintf(out, "  %-6d  %-19s  %-6d  %-24s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Pages,
			files,
			run.RootURL,
		)
	}

	fmt.Fprintln(out, "\nUse 'coursegrab history --run <id>' to see the full report of a run.")
	return nil
}

func listDownloads(ctx context.Context, db *database.ArchiveDB, failedOnly bool, out io.Writer) error {
	records, err := db.ListDownloads(ctx, failedOnly)
	if err != nil {
		return fmt.Errorf("failed to list downloads: %w", err)
	}

	if len(records) == 0 {
		if failedOnly {
			fmt.Fprintln(out, "No failed downloads.")
		} else {
			fmt.Fprintln(out, "No downloads recorded yet.")
		}
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "[%s] %s\n", rec.Status, rec.Path)
		fmt.Fprintf(out, "    %s  %s\n", rec.Timestamp.Local().Format("2006-01-02 15:04:05"), rec.URL)
		if rec.SHA3 != "" {
			fmt.Fprintf(out, "    %d bytes  sha3-256:%s\n", rec.Bytes, rec.SHA3)
		}
		if rec.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", rec.Error)
		}
	}
	return nil
}

func showRun(ctx context.Context, db *database.ArchiveDB, id int64, jsonOutput bool, out io.Writer) error {
	runReport, err := db.GetRunReport(ctx, id)
	if err != nil {
		return err
	}
	if runReport == nil {
		return fmt.Errorf("run %d not found (use 'coursegrab history' to list runs)", id)
	}

	var w report.Writer = report.NewSimpleWriter(out, report.WithVerbose(true))
	if jsonOutput {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	}
	_, err = w.Write(runReport)
	return err
}
