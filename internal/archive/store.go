// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists completed job results and builds a retrieval index.
// Implements: prd015-archive (R1-R4).
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/patent-scout/pkg/types"
)

const (
	defaultDir = "archive"
	dbFile     = "patent-scout.db"
)

// Store manages the job archive SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the archive database at cfg.Dir/patent-scout.db.
// It creates the schema if it does not exist.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}

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
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			molecule TEXT NOT NULL,
			brand TEXT,
			completeness TEXT,
			terms_generated INTEGER,
			terms_searched INTEGER,
			elapsed_seconds REAL,
			completed_at TEXT,
			inputs TEXT,
			pending TEXT,
			diagnostics TEXT,
			audit TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL REFERENCES jobs(id),
			canonical_id TEXT NOT NULL,
			country TEXT,
			kind TEXT,
			kind_code TEXT,
			title TEXT,
			abstract TEXT,
			confidence REAL,
			sources TEXT,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_job_id ON records(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_country ON records(country)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE records_fts USING fts5(title, abstract, content=records, content_rowid=rowid)`,
			`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO records_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Save archives a completed job result. Saving the same job id again
// replaces the stored result and its records.
func (s *Store) Save(ctx context.Context, result *types.JobResult) error {
	if result.JobID == "" {
		return fmt.Errorf("archiving job: empty job id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Remove old records if re-archiving.
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE job_id = ?`, result.JobID); err != nil {
		return fmt.Errorf("deleting old records: %w", err)
	}

	inputsJSON, _ := json.Marshal(result.Inputs)
	pendingJSON, _ := json.Marshal(result.Pending)
	diagJSON, _ := json.Marshal(result.Diagnostics)

	auditJSON := sql.NullString{}
	if result.Audit != nil {
		data, _ := json.Marshal(result.Audit)
		auditJSON = sql.NullString{String: string(data), Valid: true}
	}

	completedAt := ""
	if !result.CompletedAt.IsZero() {
		completedAt = result.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, molecule, brand, completeness, terms_generated, terms_searched,
			elapsed_seconds, completed_at, inputs, pending, diagnostics, audit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			molecule=excluded.molecule, brand=excluded.brand,
			completeness=excluded.completeness,
			terms_generated=excluded.terms_generated, terms_searched=excluded.terms_searched,
			elapsed_seconds=excluded.elapsed_seconds, completed_at=excluded.completed_at,
			inputs=excluded.inputs, pending=excluded.pending,
			diagnostics=excluded.diagnostics, audit=excluded.audit`,
		result.JobID, result.Inputs.Molecule, result.Inputs.Brand,
		string(result.Completeness), result.TermsGenerated, result.TermsSearched,
		result.ElapsedSeconds, completedAt,
		string(inputsJSON), string(pendingJSON), string(diagJSON), auditJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting job: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (job_id, canonical_id, country, kind, kind_code,
			title, abstract, confidence, sources, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range result.Records {
		sourcesJSON, _ := json.Marshal(rec.Sources)
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record %s: %w", rec.ID.String(), err)
		}
		_, err = stmt.ExecContext(ctx,
			result.JobID, rec.ID.String(), rec.ID.Country, string(rec.ID.Kind),
			rec.KindCode, rec.Title, rec.Abstract, rec.Confidence,
			string(sourcesJSON), string(recordJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ID.String(), err)
		}
	}

	return tx.Commit()
}
