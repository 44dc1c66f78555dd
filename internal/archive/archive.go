// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive maintains a queryable SQLite index of workflow
// records. The JSON ledger stays the source of truth; the archive is
// rebuilt from it after every run and serves status and search queries.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const dbFile = "paperwatch.db"

// Store wraps the archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database under workDir, creating
// the schema on first use.
func Open(workDir string) (*Store, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	dbPath := filepath.Join(workDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			uid TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			source TEXT,
			category TEXT,
			submit_date TEXT,
			status TEXT,
			failure_reason TEXT,
			pdf_path TEXT,
			report_path TEXT,
			email_sent INTEGER,
			first_success TEXT,
			synced_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_category ON papers(category)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT,
			started_at TEXT,
			finished_at TEXT,
			outcome TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(uid UNINDEXED, title, authors, abstract)`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS table: %w", err)
			}
		}
	}
	return nil
}

// Sync replaces the indexed papers with the current ledger contents.
func (s *Store) Sync(ctx context.Context, records map[string]*types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers`); err != nil {
		return fmt.Errorf("clearing papers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM papers_fts`); err != nil {
		return fmt.Errorf("clearing search index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (uid, title, authors, abstract, source, category, submit_date,
			status, failure_reason, pdf_path, report_path, email_sent, first_success, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers_fts (uid, title, authors, abstract) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing search insert: %w", err)
	}
	defer ftsStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for uid, rec := range records {
		if rec == nil {
			continue
		}
		submitDate := ""
		if rec.SubmitDate != nil {
			submitDate = rec.SubmitDate.Format(time.RFC3339)
		}
		firstSuccess := ""
		if rec.FirstSuccess != nil {
			firstSuccess = rec.FirstSuccess.Format(time.RFC3339)
		}
		emailSent := 0
		if rec.EmailSent {
			emailSent = 1
		}
		_, err := stmt.ExecContext(ctx,
			uid, rec.Title, rec.Authors, rec.Abstract,
			string(rec.Source), rec.SourceCategory, submitDate,
			string(rec.Status), rec.FailureReason,
			rec.LocalPath, rec.AnalysisPath, emailSent, firstSuccess, now,
		)
		if err != nil {
			return fmt.Errorf("inserting paper %s: %w", uid, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, uid, rec.Title, rec.Authors, rec.Abstract); err != nil {
			return fmt.Errorf("indexing paper %s: %w", uid, err)
		}
	}

	return tx.Commit()
}

// RecordRun stores the outcome of one workflow run.
func (s *Store) RecordRun(ctx context.Context, runID, mode string, started, finished time.Time, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, mode, started_at, finished_at, outcome)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, mode,
		started.UTC().Format(time.RFC3339),
		finished.UTC().Format(time.RFC3339),
		outcome,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", runID, err)
	}
	return nil
}

// StatusCounts returns the number of indexed papers per status.
func (s *Store) StatusCounts(ctx context.Context) (map[types.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, count(*) FROM papers GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[types.Status(status)] = n
	}
	return counts, rows.Err()
}

// Entry is one paper row returned by queries.
type Entry struct {
	UID      string
	Title    string
	Category string
	Status   types.Status
	Reason   string
}

// Failures lists papers currently in the failed state, most recent
// submissions first.
func (s *Store) Failures(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, title, category, status, failure_reason
		 FROM papers WHERE status = ? ORDER BY submit_date DESC, uid`,
		string(types.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search matches the query against indexed titles, authors, and
// abstracts.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.uid, p.title, p.category, p.status, p.failure_reason
		 FROM papers_fts f JOIN papers p ON p.uid = f.uid
		 WHERE papers_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching papers: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.UID, &e.Title, &e.Category, &status, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning paper row: %w", err)
		}
		e.Status = types.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
