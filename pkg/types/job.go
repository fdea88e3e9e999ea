// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobState is the lifecycle state of an aggregation job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Completeness distinguishes a full run from one cut short by deadline
// or by non-mandatory source failure.
type Completeness string

const (
	CompletenessFull    Completeness = "complete"
	CompletenessPartial Completeness = "partial"
)

// JobInputs describes the molecule a job aggregates filings for. Brand
// names, development codes, and translated variants all seed the term
// generator; Molecule is the only required field.
type JobInputs struct {
	Molecule string `json:"molecule" yaml:"molecule" validate:"required"`

	Brand    string   `json:"brand,omitempty" yaml:"brand,omitempty"`
	DevCodes []string `json:"dev_codes,omitempty" yaml:"dev_codes,omitempty"`

	// TranslatedVariants are pre-translated forms of the molecule name
	// for the target jurisdiction's language. When empty the pipeline
	// asks the translation service for them.
	TranslatedVariants []string `json:"translated_variants,omitempty" yaml:"translated_variants,omitempty"`

	// CASNumber, when known, is searched verbatim as an extra textual term.
	CASNumber string `json:"cas_number,omitempty" yaml:"cas_number,omitempty"`
}

// Diagnostic records one per-term, per-source failure. Failures are
// collected, never escalated past the term that caused them.
type Diagnostic struct {
	Source  string      `json:"source" yaml:"source"`
	Term    string      `json:"term,omitempty" yaml:"term,omitempty"`
	Field   TargetField `json:"field,omitempty" yaml:"field,omitempty"`
	Kind    string      `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
}

// JobResult is the terminal output of a job: everything the pipeline
// found plus everything it could not do.
type JobResult struct {
	JobID  string    `json:"job_id" yaml:"job_id"`
	Inputs JobInputs `json:"inputs" yaml:"inputs"`

	Records []CanonicalRecord `json:"records" yaml:"records"`
	Pending []PendingRecord   `json:"pending,omitempty" yaml:"pending,omitempty"`
	Audit   *AuditReport      `json:"audit,omitempty" yaml:"audit,omitempty"`

	Diagnostics  []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Completeness Completeness `json:"completeness" yaml:"completeness"`

	TermsGenerated int     `json:"terms_generated" yaml:"terms_generated"`
	TermsSearched  int     `json:"terms_searched" yaml:"terms_searched"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// Job is the orchestrator's view of one submitted aggregation request.
type Job struct {
	ID     string    `json:"id" yaml:"id"`
	Inputs JobInputs `json:"inputs" yaml:"inputs"`
	State  JobState  `json:"state" yaml:"state"`

	// Err is the terminal failure reason; set only when State is failed.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`

	// Result is set only when State is succeeded.
	Result *JobResult `json:"result,omitempty" yaml:"result,omitempty"`

	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}
