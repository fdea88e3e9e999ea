// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize canonicalizes publication identifiers across sources
// and merges raw matches into a deduplicated record set.
// Implements: prd012-normalize (R1-R3);
//
//	docs/ARCHITECTURE § Normalizer.
//
// Merge is idempotent, commutative, and associative: the scheduler feeds
// matches in whatever order the sources answer, and the result set must
// not depend on that order.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// idRE splits a cleaned publication id into country prefix, number, and
// optional kind code.
var idRE = regexp.MustCompile(`^([A-Z]{2})(\d+)([A-Z]\d?)?$`)

// checkDigitRE matches the national office's trailing check digit
// ("BR 11 2024 001234-5"); the registry does not carry it, so it is
// dropped before comparison.
var checkDigitRE = regexp.MustCompile(`-\d$`)

// legacyPrefixes are the national office's pre-PCT numbering prefixes.
// They identify the jurisdiction but are not ISO country codes.
var legacyPrefixes = map[string]bool{"PI": true, "MU": true}

// ParseID canonicalizes one source-formatted publication id. The country
// may arrive separately or embedded in the id. Returns the canonical id,
// the kind code if the id carried one, and whether parsing succeeded.
func ParseID(country, pubID string) (types.CanonicalID, string, bool) {
	raw := strings.ToUpper(strings.TrimSpace(pubID))
	raw = strings.NewReplacer(" ", "", "\t", "", ".", "", "/", "").Replace(raw)
	raw = checkDigitRE.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "-", "")

	prefix := strings.ToUpper(strings.TrimSpace(country))
	if prefix != "" && !strings.HasPrefix(raw, prefix) {
		raw = prefix + raw
	}

	parts := idRE.FindStringSubmatch(raw)
	if parts == nil {
		return types.CanonicalID{}, "", false
	}

	id := types.CanonicalID{Country: parts[1], Number: parts[2]}
	if legacyPrefixes[id.Country] {
		// "PI0902345" is a Brazilian filing under the legacy scheme.
		id.Number = id.Country + id.Number
		id.Country = "BR"
	}
	if id.Country == "WO" {
		id.Kind = types.KindInternational
	} else {
		id.Kind = types.KindApplication
	}
	return id, parts[3], true
}

// NormalizeRef canonicalizes a reference-set id string to the same
// scheme records use, so audit comparison is exact. Returns "" when the
// string is not a publication id.
func NormalizeRef(s string) string {
	id, _, ok := ParseID("", s)
	if !ok {
		return ""
	}
	return id.String()
}

// Set accumulates raw matches into canonical records keyed by canonical
// id. Not safe for concurrent use; the scheduler owns it.
type Set struct {
	records map[types.CanonicalID]*types.CanonicalRecord
	origins map[types.CanonicalID]*origin
	skipped int
}

// origin remembers which source supplied each descriptive field, so
// conflicting sightings resolve the same way in every arrival order.
type origin struct {
	title       string
	abstract    string
	applicants  string
	inventors   string
	ipc         string
	relatedIntl string
}

// NewSet returns an empty record set.
func NewSet() *Set {
	return &Set{
		records: make(map[types.CanonicalID]*types.CanonicalRecord),
		origins: make(map[types.CanonicalID]*origin),
	}
}

// Add normalizes one raw match and merges it into the set. Unparseable
// ids are counted and dropped, never fatal. Returns the canonical id and
// whether the match was merged.
func (s *Set) Add(m types.RawMatch) (types.CanonicalID, bool) {
	id, kindCode, ok := ParseID(m.CountryCode, m.PublicationID)
	if !ok {
		s.skipped++
		return types.CanonicalID{}, false
	}

	rec, exists := s.records[id]
	if !exists {
		rec = &types.CanonicalRecord{ID: id}
		s.records[id] = rec
		s.origins[id] = &origin{}
	}
	mergeInto(rec, s.origins[id], m, kindCode)
	return id, true
}

// LinkIntl back-fills the international cross-reference on an existing
// record. A record that already carries one keeps it.
func (s *Set) LinkIntl(id types.CanonicalID, intl string) bool {
	rec, ok := s.records[id]
	if !ok || intl == "" {
		return false
	}
	if rec.RelatedIntl == "" {
		rec.RelatedIntl = intl
	}
	return true
}

// Has reports whether a record exists for the canonical id.
func (s *Set) Has(id types.CanonicalID) bool {
	_, ok := s.records[id]
	return ok
}

// Len returns the number of canonical records.
func (s *Set) Len() int { return len(s.records) }

// Skipped returns how many raw matches had unparseable ids.
func (s *Set) Skipped() int { return s.skipped }

// Records returns the canonical records sorted by id with confidence
// computed. Sorting here is what makes the output independent of the
// order matches arrived in. The returned slice is a copy.
func (s *Set) Records() []types.CanonicalRecord {
	out := make([]types.CanonicalRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		cp.Confidence = confidence(&cp)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ID, out[j].ID
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Kind < b.Kind
	})
	return out
}

// mergeInto folds one sighting into a record: source and term sets grow
// by union, the most specific kind code wins, and descriptive fields
// resolve to one sighting by a fixed tie-break. Every rule here must be
// commutative and associative; the scheduler feeds matches in whatever
// order the sources answer.
func mergeInto(rec *types.CanonicalRecord, org *origin, m types.RawMatch, kindCode string) {
	rec.Sources = insertSorted(rec.Sources, m.Source)
	if m.Term.Text != "" {
		rec.MatchedTerms = insertTerm(rec.MatchedTerms, m.Term)
	}

	if kindRank(kindCode) > kindRank(rec.KindCode) ||
		(kindRank(kindCode) == kindRank(rec.KindCode) && kindCode > rec.KindCode) {
		rec.KindCode = kindCode
	}

	takeText(&rec.Title, &org.title, m.Title, m.Source)
	takeText(&rec.Abstract, &org.abstract, m.Abstract, m.Source)
	takeText(&rec.RelatedIntl, &org.relatedIntl, m.RelatedIntl, m.Source)
	if len(m.Applicants) > 0 && listWins(org.applicants, m.Source) {
		rec.Applicants = m.Applicants
		org.applicants = m.Source
	}
	if len(m.Inventors) > 0 && listWins(org.inventors, m.Source) {
		rec.Inventors = m.Inventors
		org.inventors = m.Source
	}
	if len(m.IPCCodes) > 0 && listWins(org.ipc, m.Source) {
		rec.IPCCodes = m.IPCCodes
		org.ipc = m.Source
	}

	if !m.FilingDate.IsZero() && (rec.FilingDate.IsZero() || m.FilingDate.Before(rec.FilingDate)) {
		rec.FilingDate = m.FilingDate
	}
	if !m.PublicationDate.IsZero() && (rec.PublicationDate.IsZero() || m.PublicationDate.Before(rec.PublicationDate)) {
		rec.PublicationDate = m.PublicationDate
	}
}

// takeText resolves a conflicting text field: non-empty beats empty,
// the lexicographically smallest source name beats other sources, and
// within one source the smallest value wins.
func takeText(cur, curSrc *string, val, src string) {
	if val == "" {
		return
	}
	if *cur != "" && *curSrc < src {
		return
	}
	if *cur != "" && *curSrc == src && *cur <= val {
		return
	}
	*cur = val
	*curSrc = src
}

// listWins reports whether a list field from src displaces the one the
// source named cur supplied.
func listWins(cur, src string) bool {
	return cur == "" || src < cur
}

// confidence scores a record: 0.5 base, +0.3 for independent source
// confirmation, +0.2 for confirmation by more than one strategy.
func confidence(rec *types.CanonicalRecord) float64 {
	tenths := 5
	if len(rec.Sources) >= 2 {
		tenths += 3
	}
	strategies := make(map[types.Strategy]bool)
	for _, t := range rec.MatchedTerms {
		strategies[t.Strategy] = true
	}
	if len(strategies) >= 2 {
		tenths += 2
	}
	if tenths > 10 {
		tenths = 10
	}
	return float64(tenths) / 10
}

// kindRank orders kind codes by specificity: granted publications over
// application publications over none.
func kindRank(kind string) int {
	switch {
	case kind == "":
		return 0
	case kind[0] == 'A':
		return 1
	case kind[0] == 'B':
		return 2
	default:
		return 1
	}
}

// insertSorted adds s to a sorted string set.
func insertSorted(set []string, s string) []string {
	if s == "" {
		return set
	}
	i := sort.SearchStrings(set, s)
	if i < len(set) && set[i] == s {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = s
	return set
}

// insertTerm adds t to a term set ordered by term key.
func insertTerm(set []types.SearchTerm, t types.SearchTerm) []types.SearchTerm {
	key := t.Key()
	i := sort.Search(len(set), func(i int) bool { return set[i].Key() >= key })
	if i < len(set) && set[i].Key() == key {
		return set
	}
	set = append(set, types.SearchTerm{})
	copy(set[i+1:], set[i:])
	set[i] = t
	return set
}
