// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"testing"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

var now = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func intl(number string, filedMonthsAgo int) types.CanonicalRecord {
	return types.CanonicalRecord{
		ID:         types.CanonicalID{Country: "WO", Number: number, Kind: types.KindInternational},
		FilingDate: now.AddDate(0, -filedMonthsAgo, 0),
	}
}

func TestInferWindow(t *testing.T) {
	cfg := types.InferenceConfig{WindowLowerMonths: 6, WindowUpperMonths: 18}

	tests := []struct {
		name      string
		monthsAgo int
		wantProb  types.Probability
		wantNone  bool
	}{
		{"too recent", 3, "", true},
		{"at lower bound", 6, types.ProbabilityMedium, false},
		{"inside window", 12, types.ProbabilityMedium, false},
		{"at upper bound", 18, types.ProbabilityMedium, false},
		{"past upper bound", 24, types.ProbabilityHigh, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := Infer(cfg, []types.CanonicalRecord{intl("2024000001", tt.monthsAgo)}, "BR", now)
			if tt.wantNone {
				if len(pending) != 0 {
					t.Fatalf("pending = %v, want none", pending)
				}
				return
			}
			if len(pending) != 1 {
				t.Fatalf("len(pending) = %d, want 1", len(pending))
			}
			p := pending[0]
			if p.Probability != tt.wantProb {
				t.Errorf("Probability = %s, want %s", p.Probability, tt.wantProb)
			}
			if p.ElapsedMonths != tt.monthsAgo {
				t.Errorf("ElapsedMonths = %d, want %d", p.ElapsedMonths, tt.monthsAgo)
			}
			if p.ExpectedCountry != "BR" {
				t.Errorf("ExpectedCountry = %q", p.ExpectedCountry)
			}
			if p.Warning != types.InferenceWarning {
				t.Error("pending record must carry the inference-only marker")
			}
		})
	}
}

func TestInferSkipsEnteredJurisdiction(t *testing.T) {
	wo := intl("2024000001", 24)
	national := types.CanonicalRecord{
		ID:          types.CanonicalID{Country: "BR", Number: "112024001234", Kind: types.KindApplication},
		RelatedIntl: "WO2024000001",
	}

	pending := Infer(types.InferenceConfig{}, []types.CanonicalRecord{wo, national}, "BR", now)
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none: the national phase is already confirmed", pending)
	}

	// The same international record without the national link is emitted.
	pending = Infer(types.InferenceConfig{}, []types.CanonicalRecord{wo}, "BR", now)
	if len(pending) != 1 {
		t.Errorf("len(pending) = %d, want 1", len(pending))
	}
}

func TestInferIgnoresNationalRecords(t *testing.T) {
	records := []types.CanonicalRecord{
		{
			ID:         types.CanonicalID{Country: "BR", Number: "112024001234", Kind: types.KindApplication},
			FilingDate: now.AddDate(0, -24, 0),
		},
	}
	if pending := Infer(types.InferenceConfig{}, records, "BR", now); len(pending) != 0 {
		t.Errorf("pending = %v, national records must not seed inference", pending)
	}
}

func TestInferPublicationDateFallback(t *testing.T) {
	rec := types.CanonicalRecord{
		ID:              types.CanonicalID{Country: "WO", Number: "2024000002", Kind: types.KindInternational},
		PublicationDate: now.AddDate(0, -20, 0),
	}
	pending := Infer(types.InferenceConfig{}, []types.CanonicalRecord{rec}, "BR", now)
	if len(pending) != 1 || pending[0].Probability != types.ProbabilityHigh {
		t.Errorf("pending = %+v, want one high-probability record", pending)
	}

	// No date at all: nothing to infer from.
	rec.PublicationDate = time.Time{}
	if pending := Infer(types.InferenceConfig{}, []types.CanonicalRecord{rec}, "BR", now); len(pending) != 0 {
		t.Errorf("pending = %v, want none without dates", pending)
	}
}

func TestInferDeterministicOrder(t *testing.T) {
	records := []types.CanonicalRecord{
		intl("2024000009", 24),
		intl("2024000001", 24),
		intl("2024000005", 24),
	}
	pending := Infer(types.InferenceConfig{}, records, "BR", now)
	if len(pending) != 3 {
		t.Fatalf("len(pending) = %d, want 3", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i-1].DerivedFrom.String() > pending[i].DerivedFrom.String() {
			t.Fatalf("pending not sorted: %v", pending)
		}
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-15", "2024-07-15", 6},
		{"2024-01-15", "2024-07-14", 5},
		{"2024-01-31", "2026-02-01", 24},
		{"2026-08-01", "2026-08-01", 0},
		{"2026-09-01", "2026-08-01", 0},
	}
	for _, tt := range tests {
		a, _ := time.Parse("2006-01-02", tt.a)
		b, _ := time.Parse("2006-01-02", tt.b)
		if got := monthsBetween(a, b); got != tt.want {
			t.Errorf("monthsBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
