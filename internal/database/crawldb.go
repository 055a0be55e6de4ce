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

	"github.com/nao1215/deltacrawl/internal/graph"
	"github.com/nao1215/deltacrawl/internal/ledger"
	"github.com/nao1215/deltacrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "deltacrawl.db"

// sortableTime formats started_at so that lexical order is chronological.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a requested report does not exist.
var ErrNotFound = errors.New("not found")

// CrawlDB provides SQLite-based storage for ledgers, statements and reports.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Ensure CrawlDB implements the ledger and graph stores.
var (
	_ ledger.Store = (*CrawlDB)(nil)
	_ graph.Store  = (*CrawlDB)(nil)
)

// Options configures CrawlDB behavior.
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

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents modernc.org/sqlite from creating a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	// Other processes, such as a history query during a watch, may hold the lock.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Access records hold the last marker seen for every item of a source
	CREATE TABLE IF NOT EXISTS access_records (
		source TEXT NOT NULL,
		item_id TEXT NOT NULL,
		marker TEXT NOT NULL,
		PRIMARY KEY (source, item_id)
	);

	-- Statements hold extracted metadata, one row per triple
	CREATE TABLE IF NOT EXISTS statements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_statements_subject ON statements(subject);
	CREATE INDEX IF NOT EXISTS idx_statements_predicate ON statements(predicate, object);

	-- Crawl reports store finished runs as JSON
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_source ON crawl_reports(source);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON crawl_reports(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Load implements ledger.Store.
func (cdb *CrawlDB) Load(ctx context.Context, sourceID string) (map[string]ledger.Record, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT item_id, marker FROM access_records WHERE source = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load access records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]ledger.Record)
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.ID, &rec.Marker); err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		records[rec.ID] = rec
	}
	return records, rows.Err()
}

// Replace implements ledger.Store. The records of sourceID are swapped in
// one transaction.
func (cdb *CrawlDB) Replace(ctx context.Context, sourceID string, records []ledger.Record) error {
	return cdb.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM access_records WHERE source = ?`, sourceID); err != nil {
			return fmt.Errorf("failed to clear access records: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO access_records (source, item_id, marker) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare access record insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, sourceID, rec.ID, rec.Marker); err != nil {
				return fmt.Errorf("failed to insert access record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Put implements graph.Store.
func (cdb *CrawlDB) Put(ctx context.Context, fragment *graph.Fragment) error {
	return cdb.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM statements WHERE subject = ?`, fragment.Subject); err != nil {
			return fmt.Errorf("failed to clear statements: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO statements (subject, predicate, object, position) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement insert: %w", err)
		}
		defer stmt.Close()

		for i, s := range fragment.Statements {
			if _, err := stmt.ExecContext(ctx, fragment.Subject, s.Predicate, s.Object, i); err != nil {
				return fmt.Errorf("failed to insert statement: %w", err)
			}
		}
		return nil
	})
}

// Remove implements graph.Store.
func (cdb *CrawlDB) Remove(ctx context.Context, subject string) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM statements WHERE subject = ?`, subject); err != nil {
		return fmt.Errorf("failed to remove statements: %w", err)
	}
	return nil
}

// GetFragment returns the statements stored about subject, or nil when none are.
func (cdb *CrawlDB) GetFragment(ctx context.Context, subject string) (*graph.Fragment, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT predicate, object FROM statements WHERE subject = ? ORDER BY position`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to get statements: %w", err)
	}
	defer rows.Close()

	fragment := graph.NewFragment(subject)
	for rows.Next() {
		var predicate, object string
		if err := rows.Scan(&predicate, &object); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		fragment.Add(predicate, object)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if fragment.Len() == 0 {
		return nil, nil
	}
	return fragment, nil
}

// QuerySubjects returns the subjects having predicate with the given object.
// An empty object matches any value.
func (cdb *CrawlDB) QuerySubjects(ctx context.Context, predicate, object string) ([]string, error) {
	query := `SELECT DISTINCT subject FROM statements WHERE predicate = ?`
	args := []any{predicate}
	if object != "" {
		query += " AND object = ?"
		args = append(args, object)
	}
	query += " ORDER BY subject"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	subjects := make([]string, 0)
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// SaveCrawlReport stores a finished report. Saving the same run twice
// replaces the earlier copy.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error {
	snapshot := report.Snapshot()
	reportJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO crawl_reports (run_id, source, status, started_at, report_json)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		status = excluded.status,
		report_json = excluded.report_json,
		timestamp = CURRENT_TIMESTAMP
	`
	_, err = cdb.db.ExecContext(ctx, query,
		snapshot.RunID,
		snapshot.Source,
		snapshot.Status.String(),
		snapshot.StartedAt.UTC().Format(sortableTime),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}
	return nil
}

// GetLatestCrawlReport retrieves the most recent report for a source.
// It returns ErrNotFound when the source was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, sourceID string) (*model.CrawlReport, error) {
	reports, err := cdb.GetCrawlHistory(ctx, sourceID, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("crawl report for %s: %w", sourceID, ErrNotFound)
	}
	return reports[0], nil
}

// GetCrawlReport retrieves a report by run ID.
func (cdb *CrawlDB) GetCrawlReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT report_json FROM crawl_reports WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("crawl report %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetCrawlHistory returns the reports of a source, newest first. An empty
// sourceID returns the reports of every source. A limit <= 0 means no limit.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, sourceID string, limit int) ([]*model.CrawlReport, error) {
	query := `SELECT report_json FROM crawl_reports WHERE 1=1`
	args := make([]any, 0, 2)
	if sourceID != "" {
		query += " AND source = ?"
		args = append(args, sourceID)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	reports := make([]*model.CrawlReport, 0)
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.CrawlReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// SourceSummary describes one crawled source.
type SourceSummary struct {
	// Source is the source identifier.
	Source string

	// Runs is the number of stored reports.
	Runs int

	// LastRun is when the most recent run was stored.
	LastRun time.Time

	// Items is the number of access records in the ledger.
	Items int
}

// ListCrawledSources returns every source with at least one stored report,
// in lexical order.
func (cdb *CrawlDB) ListCrawledSources(ctx context.Context) ([]SourceSummary, error) {
	query := `
	SELECT r.source, COUNT(*), MAX(r.timestamp),
		(SELECT COUNT(*) FROM access_records a WHERE a.source = r.source)
	FROM crawl_reports r
	GROUP BY r.source
	ORDER BY r.source
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]SourceSummary, 0)
	for rows.Next() {
		var s SourceSummary
		var timestamp string
		if err := rows.Scan(&s.Source, &s.Runs, &timestamp, &s.Items); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		s.LastRun = parseTimestamp(timestamp)
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// inTx runs fn in a transaction, committing on success.
func (cdb *CrawlDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a timestamp in any format SQLite may return. It
// returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
