// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

const defaultMaxResults = 50

// JobSummary is one row of the archive listing.
type JobSummary struct {
	JobID        string             `json:"job_id" yaml:"job_id"`
	Molecule     string             `json:"molecule" yaml:"molecule"`
	Brand        string             `json:"brand,omitempty" yaml:"brand,omitempty"`
	Completeness types.Completeness `json:"completeness" yaml:"completeness"`
	RecordCount  int                `json:"record_count" yaml:"record_count"`
	CompletedAt  time.Time          `json:"completed_at" yaml:"completed_at"`
}

// List returns summaries of every archived job, most recent first.
func (s *Store) List(ctx context.Context) ([]JobSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT j.id, j.molecule, j.brand, j.completeness, j.completed_at,
			(SELECT count(*) FROM records r WHERE r.job_id = j.id)
		FROM jobs j
		ORDER BY j.completed_at DESC, j.id`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var summaries []JobSummary
	for rows.Next() {
		var (
			sum          JobSummary
			brand        sql.NullString
			completeness sql.NullString
			completedAt  sql.NullString
		)
		if err := rows.Scan(&sum.JobID, &sum.Molecule, &brand, &completeness, &completedAt, &sum.RecordCount); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if brand.Valid {
			sum.Brand = brand.String
		}
		if completeness.Valid {
			sum.Completeness = types.Completeness(completeness.String)
		}
		if completedAt.Valid && completedAt.String != "" {
			if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
				sum.CompletedAt = t
			}
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Load reconstructs an archived job result.
func (s *Store) Load(ctx context.Context, jobID string) (*types.JobResult, error) {
	var (
		result       types.JobResult
		completeness string
		completedAt  string
		inputsJSON   sql.NullString
		pendingJSON  sql.NullString
		diagJSON     sql.NullString
		auditJSON    sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT completeness, terms_generated, terms_searched, elapsed_seconds,
			completed_at, inputs, pending, diagnostics, audit
		FROM jobs WHERE id = ?`, jobID,
	).Scan(&completeness, &result.TermsGenerated, &result.TermsSearched,
		&result.ElapsedSeconds, &completedAt,
		&inputsJSON, &pendingJSON, &diagJSON, &auditJSON)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s not found in archive", jobID)
		}
		return nil, fmt.Errorf("looking up job: %w", err)
	}

	result.JobID = jobID
	result.Completeness = types.Completeness(completeness)
	if completedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			result.CompletedAt = t
		}
	}
	if inputsJSON.Valid {
		json.Unmarshal([]byte(inputsJSON.String), &result.Inputs)
	}
	if pendingJSON.Valid {
		json.Unmarshal([]byte(pendingJSON.String), &result.Pending)
	}
	if diagJSON.Valid {
		json.Unmarshal([]byte(diagJSON.String), &result.Diagnostics)
	}
	if auditJSON.Valid {
		var audit types.AuditReport
		if err := json.Unmarshal([]byte(auditJSON.String), &audit); err == nil {
			result.Audit = &audit
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM records WHERE job_id = ? ORDER BY country, canonical_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var rec types.CanonicalRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			return nil, fmt.Errorf("parsing record: %w", err)
		}
		result.Records = append(result.Records, rec)
	}

	return &result, rows.Err()
}

// SearchOptions holds parameters for archive record queries.
type SearchOptions struct {
	// Query is the FTS5 full-text search string over titles and abstracts.
	Query string

	// Country filters by jurisdiction.
	Country string

	// Source filters to records confirmed by the named connector.
	Source string

	// Molecule filters to records from jobs for the named molecule.
	Molecule string

	// MinConfidence drops records below the threshold.
	MinConfidence float64

	// MaxResults limits result count. Zero uses the default.
	MaxResults int
}

// SearchResult is an archived record with its originating job.
type SearchResult struct {
	types.CanonicalRecord
	JobID    string `json:"job_id" yaml:"job_id"`
	Molecule string `json:"molecule" yaml:"molecule"`
}

// Search queries archived records with optional full-text search and
// structured filters. Results are ranked by relevance for full-text
// queries or sorted by canonical id otherwise.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.record, r.job_id, j.molecule, records_fts.rank
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			JOIN jobs j ON r.job_id = j.id
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.record, r.job_id, j.molecule, 0 AS rank
			FROM records r
			JOIN jobs j ON r.job_id = j.id
			WHERE 1=1`)
	}

	if opts.Country != "" {
		qb.WriteString(` AND r.country = ?`)
		args = append(args, strings.ToUpper(opts.Country))
	}

	if opts.Molecule != "" {
		qb.WriteString(` AND j.molecule = ?`)
		args = append(args, opts.Molecule)
	}

	if opts.Source != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(r.sources) WHERE value = ?)`)
		args = append(args, opts.Source)
	}

	if opts.MinConfidence > 0 {
		qb.WriteString(` AND r.confidence >= ?`)
		args = append(args, opts.MinConfidence)
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.country, r.canonical_id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			sr         SearchResult
			recordJSON string
			rank       float64
		)
		if err := rows.Scan(&recordJSON, &sr.JobID, &sr.Molecule, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(recordJSON), &sr.CanonicalRecord); err != nil {
			return nil, fmt.Errorf("parsing record: %w", err)
		}
		results = append(results, sr)
	}

	return results, rows.Err()
}
