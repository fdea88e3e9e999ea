// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit benchmarks a job's canonical records against a trusted
// reference set. Implements: prd014-audit (R1-R3);
//
//	docs/ARCHITECTURE § Audit.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/patent-scout/internal/normalize"
	"github.com/pdiddy/patent-scout/pkg/types"
)

const (
	defaultQualityLowBelow  = 50.0
	defaultQualityHighAbove = 80.0
)

// Compare computes recall, precision, F1, and the qualitative ratings
// for the canonical records against the reference set. Reference ids are
// normalized to the canonical id scheme before comparison, and when the
// reference set names a jurisdiction only records from it count as
// found. A zero-sized reference or result set makes the report
// indeterminate; the percentages are then zero by definition, never a
// division result.
func Compare(cfg types.AuditConfig, records []types.CanonicalRecord, ref types.ReferenceSet) types.AuditReport {
	lowBelow := cfg.QualityLowBelow
	if lowBelow <= 0 {
		lowBelow = defaultQualityLowBelow
	}
	highAbove := cfg.QualityHighAbove
	if highAbove <= lowBelow {
		highAbove = defaultQualityHighAbove
	}

	expected := make(map[string]bool)
	for _, id := range ref.IDs {
		if norm := normalize.NormalizeRef(id); norm != "" {
			expected[norm] = true
		}
	}

	found := make(map[string]bool)
	for _, rec := range records {
		if ref.Country != "" && rec.ID.Country != ref.Country {
			continue
		}
		found[rec.ID.String()] = true
	}

	report := types.AuditReport{
		ExpectedCount: len(expected),
		FoundCount:    len(found),
	}

	var matched, missing, extra []string
	for id := range expected {
		if found[id] {
			matched = append(matched, id)
		} else {
			missing = append(missing, id)
		}
	}
	for id := range found {
		if !expected[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	sort.Strings(extra)
	report.Matched, report.Missing, report.Extra = matched, missing, extra
	report.MatchedCount = len(matched)

	if report.ExpectedCount == 0 || report.FoundCount == 0 {
		report.Indeterminate = true
	} else {
		report.RecallPercent = float64(report.MatchedCount) / float64(report.ExpectedCount) * 100
		report.PrecisionPercent = float64(report.MatchedCount) / float64(report.FoundCount) * 100
		if report.RecallPercent+report.PrecisionPercent > 0 {
			report.F1Score = 2 * report.RecallPercent * report.PrecisionPercent /
				(report.RecallPercent + report.PrecisionPercent)
		}
	}

	switch {
	case report.FoundCount > report.ExpectedCount:
		report.VsReference = types.RatingBetter
	case report.FoundCount == report.ExpectedCount:
		report.VsReference = types.RatingComparable
	default:
		report.VsReference = types.RatingWorse
	}

	switch {
	case report.F1Score < lowBelow:
		report.QualityRating = types.QualityLow
	case report.F1Score > highAbove:
		report.QualityRating = types.QualityHigh
	default:
		report.QualityRating = types.QualityMedium
	}

	return report
}

// LoadReference reads one reference-set YAML file.
func LoadReference(path string) (types.ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ReferenceSet{}, fmt.Errorf("reading reference set: %w", err)
	}
	var ref types.ReferenceSet
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return types.ReferenceSet{}, fmt.Errorf("parsing reference set %s: %w", path, err)
	}
	if len(ref.IDs) == 0 {
		return types.ReferenceSet{}, fmt.Errorf("reference set %s lists no ids", path)
	}
	return ref, nil
}

// LoadFor finds the reference set for a molecule and jurisdiction in the
// configured directory, by the <molecule>_<country>.yaml convention.
// A missing file is reported as os.ErrNotExist so callers can treat the
// audit as optional.
func LoadFor(dir, molecule, country string) (types.ReferenceSet, error) {
	name := strings.ToLower(strings.TrimSpace(molecule)) + "_" + strings.ToLower(strings.TrimSpace(country)) + ".yaml"
	return LoadReference(filepath.Join(dir, name))
}
