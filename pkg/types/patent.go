// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the patent-scout pipeline.
// Implements: prd010-aggregation (SearchTerm, RawMatch, CanonicalRecord);
//
//	prd012-inference (PendingRecord);
//	prd013-audit (ReferenceSet, AuditReport).
//
// See docs/ARCHITECTURE § Pipeline Interface, § Data Structures.
package types

import "time"

// TargetField selects which indexed field a search term is matched
// against. The national office indexes titles and abstracts separately,
// so every generated term is searched once per field.
type TargetField string

const (
	FieldTitle    TargetField = "title"
	FieldAbstract TargetField = "abstract"
)

// Strategy identifies the expansion-rule family that produced a search
// term. It is metadata: term identity is (text, field) only.
type Strategy string

const (
	StrategyTextual        Strategy = "textual"
	StrategyApplicant      Strategy = "applicant"
	StrategyClassification Strategy = "classification"
	StrategyTemporal       Strategy = "temporal"
	StrategyFormulation    Strategy = "formulation"
	StrategyPolymorphSalt  Strategy = "polymorph_salt"
	StrategyCombination    Strategy = "combination"
	StrategyVariation      Strategy = "variation"
)

// SearchTerm is one query to execute against the configured sources.
// Immutable once generated.
type SearchTerm struct {
	Text     string      `json:"text" yaml:"text"`
	Field    TargetField `json:"field" yaml:"field"`
	Strategy Strategy    `json:"strategy" yaml:"strategy"`
}

// Key returns the identity of the term under set semantics: (text, field).
func (t SearchTerm) Key() string {
	return t.Text + "\x00" + string(t.Field)
}

// RawMatch is a single hit returned by a source connector for one search
// term. Matches are owned by the scheduler until normalized; publication
// ids arrive in whatever format the source uses.
type RawMatch struct {
	// Source identifies the connector that produced the match.
	Source string `json:"source" yaml:"source"`

	// LocalID is the source's own identifier for the document, when it
	// differs from the publication id (e.g. an internal request code).
	LocalID string `json:"local_id,omitempty" yaml:"local_id,omitempty"`

	// PublicationID is the publication number as printed by the source,
	// possibly with spaces, hyphens, or a country prefix.
	PublicationID string `json:"publication_id" yaml:"publication_id"`

	// CountryCode is the source's country indication, if any. May be
	// embedded in PublicationID instead.
	CountryCode string `json:"country_code,omitempty" yaml:"country_code,omitempty"`

	// KindCode is the publication kind code (A2, B1, ...) when the
	// source reports one.
	KindCode string `json:"kind_code,omitempty" yaml:"kind_code,omitempty"`

	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	Applicants []string `json:"applicants,omitempty" yaml:"applicants,omitempty"`
	Inventors  []string `json:"inventors,omitempty" yaml:"inventors,omitempty"`
	IPCCodes   []string `json:"ipc_codes,omitempty" yaml:"ipc_codes,omitempty"`

	FilingDate      time.Time `json:"filing_date,omitempty" yaml:"filing_date,omitempty"`
	PublicationDate time.Time `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// RelatedIntl is the international publication this national filing
	// descends from (family expansion or PCT cross-reference), when known.
	RelatedIntl string `json:"related_intl,omitempty" yaml:"related_intl,omitempty"`

	// Term is the search term that produced this match.
	Term SearchTerm `json:"term" yaml:"term"`

	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// PublicationKind classifies a canonical id by shape.
type PublicationKind string

const (
	// KindApplication is a national (or regional) patent application.
	KindApplication PublicationKind = "application"

	// KindInternational is an international (PCT) publication.
	KindInternational PublicationKind = "international"
)

// CanonicalID uniquely identifies a publication across all sources:
// uppercased country, formatting-stripped number, classified kind.
type CanonicalID struct {
	Country string          `json:"country" yaml:"country"`
	Number  string          `json:"number" yaml:"number"`
	Kind    PublicationKind `json:"kind" yaml:"kind"`
}

// String renders the id in the form used for reporting and audit
// comparison, e.g. "BR112024001234".
func (id CanonicalID) String() string {
	return id.Country + id.Number
}

// CanonicalRecord is a deduplicated publication merged from every raw
// match that normalized to the same canonical id. Records are created on
// first sighting, extended on repeat sightings, and never deleted within
// a job.
type CanonicalRecord struct {
	ID CanonicalID `json:"id" yaml:"id"`

	// KindCode is the most specific kind code seen (B1 over A2 over none).
	KindCode string `json:"kind_code,omitempty" yaml:"kind_code,omitempty"`

	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	Applicants []string `json:"applicants,omitempty" yaml:"applicants,omitempty"`
	Inventors  []string `json:"inventors,omitempty" yaml:"inventors,omitempty"`
	IPCCodes   []string `json:"ipc_codes,omitempty" yaml:"ipc_codes,omitempty"`

	FilingDate      time.Time `json:"filing_date,omitempty" yaml:"filing_date,omitempty"`
	PublicationDate time.Time `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	RelatedIntl string `json:"related_intl,omitempty" yaml:"related_intl,omitempty"`

	// Sources lists every connector that confirmed this record, sorted.
	// More than one source means independent confirmation.
	Sources []string `json:"sources" yaml:"sources"`

	// MatchedTerms lists every search term that surfaced this record.
	MatchedTerms []SearchTerm `json:"matched_terms" yaml:"matched_terms"`

	// Confidence is in [0,1]; raised by multi-source and multi-strategy
	// confirmation.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Probability grades a pending-filing inference.
type Probability string

const (
	ProbabilityLow    Probability = "low"
	ProbabilityMedium Probability = "medium"
	ProbabilityHigh   Probability = "high"
)

// InferenceWarning marks every pending record through to the external
// boundary. It is set at construction and never removed.
const InferenceWarning = "inference only: not a confirmed published filing"

// PendingRecord is a predicted future national filing derived from the
// age of an international publication. Pending records are kept apart
// from canonical records and excluded from audit comparison.
type PendingRecord struct {
	// DerivedFrom is the international publication the inference is
	// based on.
	DerivedFrom CanonicalID `json:"derived_from" yaml:"derived_from"`

	// ExpectedCountry is the jurisdiction the national filing is
	// expected in. No number is assigned; the filing is unpublished.
	ExpectedCountry string `json:"expected_country" yaml:"expected_country"`

	Probability Probability `json:"probability" yaml:"probability"`

	// SourceFilingDate and ElapsedMonths record the basis of the
	// inference.
	SourceFilingDate time.Time `json:"source_filing_date" yaml:"source_filing_date"`
	ElapsedMonths    int       `json:"elapsed_months" yaml:"elapsed_months"`

	// Warning always carries InferenceWarning.
	Warning string `json:"warning" yaml:"warning"`
}

// ReferenceSet is an externally supplied list of expected canonical ids
// for one molecule in one jurisdiction, used as audit ground truth.
type ReferenceSet struct {
	Molecule string   `json:"molecule" yaml:"molecule"`
	Country  string   `json:"country" yaml:"country"`
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	IDs      []string `json:"ids" yaml:"ids"`
}

// Rating compares the found count against the reference count.
type Rating string

const (
	RatingWorse      Rating = "worse"
	RatingComparable Rating = "comparable"
	RatingBetter     Rating = "better"
)

// Quality is the qualitative rating derived from the F1 score.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// AuditReport holds the metrics from comparing a job's canonical records
// against a reference set. Computed once per job, immutable thereafter.
type AuditReport struct {
	ExpectedCount int `json:"expected_count" yaml:"expected_count"`
	FoundCount    int `json:"found_count" yaml:"found_count"`
	MatchedCount  int `json:"matched_count" yaml:"matched_count"`

	RecallPercent    float64 `json:"recall_percent" yaml:"recall_percent"`
	PrecisionPercent float64 `json:"precision_percent" yaml:"precision_percent"`
	F1Score          float64 `json:"f1_score" yaml:"f1_score"`

	VsReference   Rating  `json:"vs_reference" yaml:"vs_reference"`
	QualityRating Quality `json:"quality_rating" yaml:"quality_rating"`

	// Indeterminate is set when the reference or result set is empty;
	// the percentage fields are then zero by definition, not computed.
	Indeterminate bool `json:"indeterminate,omitempty" yaml:"indeterminate,omitempty"`

	Matched []string `json:"matched,omitempty" yaml:"matched,omitempty"`
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty" yaml:"extra,omitempty"`
}
