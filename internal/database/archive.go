package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/coursegrab/internal/model"
)

// FileName is the archive file inside the database directory.
const FileName = "coursegrab.db"

// ArchiveDB stores pages, downloads and runs.
type ArchiveDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ArchiveDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
// With CreateIfNotExists false a missing archive is an error.
func Open(dbDir string, opts Options) (*ArchiveDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run grab first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArchiveDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Close closes the database connection.
func (adb *ArchiveDB) Close() error {
	return adb.db.Close()
}

// Path returns the database file path.
func (adb *ArchiveDB) Path() string {
	return adb.dbPath
}

func (adb *ArchiveDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		title TEXT,
		dir TEXT,
		depth INTEGER DEFAULT 0,
		from_cache INTEGER DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_kind ON pages(kind);

	-- One row per destination path; the latest outcome wins.
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		kind TEXT,
		bytes INTEGER DEFAULT 0,
		sha3 TEXT,
		status TEXT NOT NULL,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
	CREATE INDEX IF NOT EXISTS idx_downloads_url ON downloads(url);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		root_url TEXT NOT NULL,
		download_dir TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		dry_run INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		pages INTEGER DEFAULT 0,
		downloaded INTEGER DEFAULT 0,
		existing INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		planned INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		problems INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertPage records a visited page, replacing any earlier record of its URL.
func (adb *ArchiveDB) UpsertPage(ctx context.Context, p model.Page) error {
	return upsertPage(ctx, adb.db, p)
}

func upsertPage(ctx context.Context, ex execer, p model.Page) error {
	query := `
	INSERT INTO pages (url, kind, title, dir, depth, from_cache, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		kind = excluded.kind,
		title = excluded.title,
		dir = excluded.dir,
		depth = excluded.depth,
		from_cache = excluded.from_cache,
		timestamp = excluded.timestamp
	`

	_, err := ex.ExecContext(ctx, query,
		p.URL,
		p.Kind.String(),
		p.Title,
		p.Dir,
		p.Depth,
		p.FromCache,
		formatTimestamp(p.VisitedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	return nil
}

// GetPage returns the stored page for url, or nil when there is none.
func (adb *ArchiveDB) GetPage(ctx context.Context, url string) (*model.Page, error) {
	query := `
	SELECT url, kind, title, dir, depth, from_cache, timestamp
	FROM pages
	WHERE url = ?
	`

	var (
		p         model.Page
		kind      string
		title     sql.NullString
		dir       sql.NullString
		timestamp string
	)
	err := adb.db.QueryRowContext(ctx, query, url).Scan(
		&p.URL, &kind, &title, &dir, &p.Depth, &p.FromCache, &timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	p.Kind = model.ParsePageKind(kind)
	p.Title = title.String
	p.Dir = dir.String
	p.VisitedAt = parseTimestamp(timestamp)
	return &p, nil
}

// DownloadRecord is a stored download outcome.
type DownloadRecord struct {
	ID        int64
	Path      string
	URL       string
	Kind      model.JobKind
	Bytes     int64
	SHA3      string
	Status    model.DownloadStatus
	Error     string
	Timestamp time.Time
}

// UpsertDownload records a download outcome for its destination path.
// A later "existing" outcome keeps the size and digest of the run that
// actually transferred the file.
func (adb *ArchiveDB) UpsertDownload(ctx context.Context, d model.DownloadResult) error {
	return upsertDownload(ctx, adb.db, d)
}

func upsertDownload(ctx context.Context, ex execer, d model.DownloadResult) error {
	query := `
	INSERT INTO downloads (path, url, kind, bytes, sha3, status, error, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		url = CASE WHEN excluded.status = 'existing' THEN downloads.url ELSE excluded.url END,
		kind = CASE WHEN excluded.status = 'existing' THEN downloads.kind ELSE excluded.kind END,
		bytes = CASE WHEN excluded.status = 'existing' THEN downloads.bytes ELSE excluded.bytes END,
		sha3 = CASE WHEN excluded.status = 'existing' THEN downloads.sha3 ELSE excluded.sha3 END,
		status = CASE
			WHEN excluded.status = 'existing' AND downloads.status = 'downloaded' THEN downloads.status
			ELSE excluded.status
		END,
		error = excluded.error,
		timestamp = excluded.timestamp
	`

	finished := d.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := ex.ExecContext(ctx, query,
		d.Job.Path,
		d.Job.URL,
		string(d.Job.Kind),
		d.Bytes,
		d.SHA3,
		d.Status.String(),
		d.Error,
		formatTimestamp(finished),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert download: %w", err)
	}
	return nil
}

// GetDownloadByPath returns the record for a destination path, or nil.
func (adb *ArchiveDB) GetDownloadByPath(ctx context.Context, path string) (*DownloadRecord, error) {
	query := `
	SELECT id, path, url, kind, bytes, sha3, status, error, timestamp
	FROM downloads
	WHERE path = ?
	`

	rec, err := scanDownload(adb.db.QueryRowContext(ctx, query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return rec, nil
}

// ListDownloads returns download records, newest first. With failedOnly set
// only failed destinations are returned.
func (adb *ArchiveDB) ListDownloads(ctx context.Context, failedOnly bool) ([]DownloadRecord, error) {
	query := `
	SELECT id, path, url, kind, bytes, sha3, status, error, timestamp
	FROM downloads
	`
	args := make([]any, 0)
	if failedOnly {
		query += " WHERE status = ?"
		args = append(args, model.DownloadStatusFailed.String())
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var results []DownloadRecord
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDownload(row rowScanner) (*DownloadRecord, error) {
	var (
		rec       DownloadRecord
		kind      sql.NullString
		sha3      sql.NullString
		status    string
		errText   sql.NullString
		timestamp string
	)
	if err := row.Scan(&rec.ID, &rec.Path, &rec.URL, &kind, &rec.Bytes, &sha3, &status, &errText, &timestamp); err != nil {
		return nil, err
	}
	rec.Kind = model.JobKind(kind.String)
	rec.SHA3 = sha3.String
	rec.Status = model.ParseDownloadStatus(status)
	rec.Error = errText.String
	rec.Timestamp = parseTimestamp(timestamp)
	return &rec, nil
}

// RunRecord summarizes a stored run.
type RunRecord struct {
	ID          int64
	RunID       string
	RootURL     string
	DownloadDir string
	StartedAt   time.Time
	FinishedAt  time.Time
	DryRun      bool
	Cancelled   bool
	Pages       int
	Downloaded  int
	Existing    int
	Failed      int
	Planned     int
	Bytes       int64
	Problems    int
}

// SaveRun stores a finished run: its pages and downloads are upserted and a
// run row with the full report is added, all in one transaction.
func (adb *ArchiveDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := adb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	for _, p := range report.Pages {
		if err := upsertPage(ctx, tx, p); err != nil {
			return 0, err
		}
	}
	for _, d := range report.Downloads {
		if err := upsertDownload(ctx, tx, d); err != nil {
			return 0, err
		}
	}

	counts := report.DownloadCounts()
	query := `
	INSERT INTO runs (run_id, root_url, download_dir, started_at, finished_at, dry_run, cancelled,
		pages, downloaded, existing, failed, planned, bytes, problems, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		report.ID,
		report.RootURL,
		report.DownloadDir,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.DryRun,
		report.Cancelled,
		len(report.Pages),
		counts[model.DownloadStatusDownloaded],
		counts[model.DownloadStatusExisting],
		counts[model.DownloadStatusFailed],
		counts[model.DownloadStatusPlanned],
		report.BytesDownloaded(),
		len(report.Problems),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns run summaries, newest first. limit <= 0 returns all runs.
func (adb *ArchiveDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, run_id, root_url, download_dir, started_at, finished_at, dry_run, cancelled,
		pages, downloaded, existing, failed, planned, bytes, problems
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		var (
			rec         RunRecord
			downloadDir sql.NullString
			started     string
			finished    sql.NullString
		)
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.RootURL, &downloadDir, &started, &finished,
			&rec.DryRun, &rec.Cancelled,
			&rec.Pages, &rec.Downloaded, &rec.Existing, &rec.Failed, &rec.Planned,
			&rec.Bytes, &rec.Problems,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.DownloadDir = downloadDir.String
		rec.StartedAt = parseTimestamp(started)
		rec.FinishedAt = parseTimestamp(finished.String)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// GetRunReport returns the full report of a run, or nil when id is unknown.
func (adb *ArchiveDB) GetRunReport(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := adb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// storedTimestampFormat has a fixed width so stored values sort as text.
const storedTimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimestampFormat)
}
