// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy expands seed identifiers for a molecule into a bounded,
// deterministic set of search terms. Implements: prd009-strategy (R1-R3).
//
// Expansion is pure: no I/O, no clock, no randomness. The same inputs
// always produce the same terms in the same order, which keeps audit runs
// reproducible.
package strategy

import (
	"fmt"
	"strings"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// DefaultMaxTerms caps generation when the config does not set a limit.
const DefaultMaxTerms = 50

// maxDevCodes bounds how many development codes seed expansion.
const maxDevCodes = 6

// classificationCodes are the IPC/CPC prefixes pharmaceutical filings
// cluster under: medicinal preparations, therapeutic activity,
// heterocyclic compounds, active-ingredient preparations.
var classificationCodes = []string{"A61K", "A61P", "C07D", "A61K31"}

// formulationVocab and polymorphVocab are Portuguese because the target
// office indexes titles and abstracts in the national language.
var formulationVocab = []string{
	"formulação",
	"comprimido",
	"cápsula",
	"composição farmacêutica",
}

var polymorphVocab = []string{
	"polimorfo",
	"forma cristalina",
	"sal",
	"hidrato",
}

// countryCodes are the jurisdictions the pipeline can be scoped to,
// keyed by WIPO ST.3 code.
var countryCodes = map[string]string{
	"AR": "Argentina",
	"AU": "Australia",
	"BR": "Brazil",
	"CA": "Canada",
	"CL": "Chile",
	"CN": "China",
	"CO": "Colombia",
	"EP": "European Patent Office",
	"IN": "India",
	"JP": "Japan",
	"KR": "South Korea",
	"MX": "Mexico",
	"PE": "Peru",
	"US": "United States",
	"WO": "WIPO",
}

// Target normalizes the configured jurisdiction, defaulting to "BR".
// Unknown codes are rejected up front rather than producing a run that
// silently matches nothing.
func Target(cfg types.StrategyConfig) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(cfg.TargetCountry))
	if c == "" {
		return "BR", nil
	}
	if _, ok := countryCodes[c]; !ok {
		return "", fmt.Errorf("strategy: unknown target country %q", cfg.TargetCountry)
	}
	return c, nil
}

// seeds is the validated, bounded input to the expansion rules.
type seeds struct {
	molecule string
	brand    string
	cas      string
	devCodes []string
	variants []string
	hints    []string
}

// names returns the molecule plus its translated variants, the bases
// most rules cross with their vocabulary.
func (s seeds) names() []string {
	return append([]string{s.molecule}, s.variants...)
}

// rule is one expansion family: a strategy tag plus a pure text producer.
// Rules are data so each family is testable in isolation and the overall
// ordering (and therefore truncation) is explicit.
type rule struct {
	strategy types.Strategy
	expand   func(s seeds) []string
}

var rules = []rule{
	{types.StrategyTextual, func(s seeds) []string {
		out := []string{s.molecule}
		if s.brand != "" {
			out = append(out, s.brand)
		}
		out = append(out, s.devCodes...)
		if s.cas != "" {
			out = append(out, s.cas)
		}
		out = append(out, s.variants...)
		return out
	}},
	{types.StrategyApplicant, func(s seeds) []string {
		return s.hints
	}},
	{types.StrategyClassification, func(s seeds) []string {
		return cross(s.names(), classificationCodes)
	}},
	{types.StrategyFormulation, func(s seeds) []string {
		return cross(s.names(), formulationVocab)
	}},
	{types.StrategyPolymorphSalt, func(s seeds) []string {
		return cross(s.names(), polymorphVocab)
	}},
	{types.StrategyCombination, func(s seeds) []string {
		var out []string
		if s.brand != "" {
			out = append(out, s.molecule+" "+s.brand, strip(s.molecule)+strip(s.brand))
		}
		if len(s.devCodes) > 0 {
			out = append(out, s.molecule+" "+s.devCodes[0])
		}
		return out
	}},
	{types.StrategyVariation, func(s seeds) []string {
		var out []string
		for _, base := range append([]string{s.molecule, s.brand}, s.variants...) {
			if v := strip(base); v != "" && v != base {
				out = append(out, v)
			}
		}
		return out
	}},
}

// Generate expands the job inputs into a deduplicated, capped sequence of
// search terms. Each produced string is emitted once per target field
// because the office indexes titles and abstracts separately. Returns an
// error only on a missing molecule name.
func Generate(cfg types.StrategyConfig, in types.JobInputs) ([]types.SearchTerm, error) {
	molecule := strings.TrimSpace(in.Molecule)
	if molecule == "" {
		return nil, fmt.Errorf("strategy: molecule name is required")
	}

	maxTerms := cfg.MaxTerms
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}

	s := seeds{
		molecule: molecule,
		brand:    strings.TrimSpace(in.Brand),
		cas:      strings.TrimSpace(in.CASNumber),
		devCodes: clean(in.DevCodes, maxDevCodes),
		variants: clean(in.TranslatedVariants, 0),
		hints:    clean(cfg.ApplicantHints, 0),
	}

	seen := make(map[string]bool)
	var terms []types.SearchTerm
	for _, r := range rules {
		for _, text := range r.expand(s) {
			for _, field := range []types.TargetField{types.FieldTitle, types.FieldAbstract} {
				t := types.SearchTerm{Text: text, Field: field, Strategy: r.strategy}
				if seen[t.Key()] {
					continue
				}
				seen[t.Key()] = true
				if len(terms) < maxTerms {
					terms = append(terms, t)
				}
			}
		}
	}
	return terms, nil
}

// cross pairs every base with every vocabulary word, base first.
func cross(bases, vocab []string) []string {
	out := make([]string, 0, len(bases)*len(vocab))
	for _, b := range bases {
		for _, v := range vocab {
			out = append(out, b+" "+v)
		}
	}
	return out
}

// strip removes whitespace and hyphens, the variations sources sometimes
// index ("darolutamide" vs "daro-lutamide").
func strip(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// clean trims, drops empties, and optionally bounds a seed list.
func clean(in []string, limit int) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
