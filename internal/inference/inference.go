// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inference predicts pending national-phase filings from the age
// of international publications. Implements: prd013-inference (R1-R2);
//
//	docs/ARCHITECTURE § Inferencer.
//
// A PCT applicant has 30 months from priority to enter the national
// phase, and the office publishes entries 12-24 months later; the
// configured window covers the span in which an unpublished entry is
// plausible. Everything emitted here is a prediction, never an observed
// filing, and stays out of the audit comparison.
package inference

import (
	"sort"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

const (
	defaultWindowLower = 6
	defaultWindowUpper = 18
)

// Infer scans the canonical records for international publications old
// enough that a national-phase entry in the target jurisdiction is
// likely but not yet visible, and emits one pending record per such
// publication. International records already linked to a national record
// in the target jurisdiction are skipped.
func Infer(cfg types.InferenceConfig, records []types.CanonicalRecord, targetCountry string, now time.Time) []types.PendingRecord {
	lower := cfg.WindowLowerMonths
	if lower <= 0 {
		lower = defaultWindowLower
	}
	upper := cfg.WindowUpperMonths
	if upper <= lower {
		upper = defaultWindowUpper
	}

	// International publications already confirmed in the target
	// jurisdiction, by their id string.
	entered := make(map[string]bool)
	for _, rec := range records {
		if rec.ID.Kind == types.KindApplication && rec.ID.Country == targetCountry && rec.RelatedIntl != "" {
			entered[rec.RelatedIntl] = true
		}
	}

	var pending []types.PendingRecord
	for _, rec := range records {
		if rec.ID.Kind != types.KindInternational {
			continue
		}
		if entered[rec.ID.String()] {
			continue
		}
		basis := rec.FilingDate
		if basis.IsZero() {
			basis = rec.PublicationDate
		}
		if basis.IsZero() {
			continue
		}

		elapsed := monthsBetween(basis, now)
		var prob types.Probability
		switch {
		case elapsed < lower:
			continue
		case elapsed <= upper:
			prob = types.ProbabilityMedium
		default:
			prob = types.ProbabilityHigh
		}

		pending = append(pending, types.PendingRecord{
			DerivedFrom:      rec.ID,
			ExpectedCountry:  targetCountry,
			Probability:      prob,
			SourceFilingDate: basis,
			ElapsedMonths:    elapsed,
			Warning:          types.InferenceWarning,
		})
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DerivedFrom.String() < pending[j].DerivedFrom.String()
	})
	return pending
}

// monthsBetween returns full calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
