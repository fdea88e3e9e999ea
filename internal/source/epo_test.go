// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

const sampleTokenJSON = `{"access_token":"tok-123","expires_in":"1199"}`

const sampleSearchJSON = `{
  "ops:world-patent-data": {
    "ops:biblio-search": {
      "ops:search-result": {
        "ops:publication-reference": [
          {"document-id": [
            {"@document-id-type": "docdb",
             "country": {"$": "WO"}, "doc-number": {"$": "2019123456"},
             "kind": {"$": "A1"}, "date": {"$": "20190620"}}
          ]},
          {"document-id":
            {"@document-id-type": "docdb",
             "country": {"$": "BR"}, "doc-number": {"$": "112024001234"},
             "kind": {"$": "A2"}}
          }
        ]
      }
    }
  }
}`

const sampleFamilyJSON = `{
  "ops:world-patent-data": {
    "ops:patent-family": {
      "ops:family-member": [
        {"publication-reference": {"document-id":
          {"@document-id-type": "docdb",
           "country": {"$": "WO"}, "doc-number": {"$": "2019123456"}, "kind": {"$": "A1"}}}},
        {"publication-reference": {"document-id":
          {"@document-id-type": "docdb",
           "country": {"$": "BR"}, "doc-number": {"$": "112021009876"},
           "kind": {"$": "A2"}, "date": {"$": "20210518"}}}}
      ]
    }
  }
}`

// newEPOServer serves token, search, and family endpoints and redirects
// the package base vars at itself. Returned cleanup restores them.
func newEPOServer(t *testing.T, searchStatus int, searchBody string) (*EPORegistry, func()) {
	t.Helper()
	var gotAuth bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/auth"):
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			gotAuth = true
			w.Write([]byte(sampleTokenJSON))
		case strings.HasPrefix(r.URL.Path, "/family"):
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(sampleFamilyJSON))
		default:
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(searchStatus)
			w.Write([]byte(searchBody))
		}
	}))

	oldAuth, oldSearch, oldFamily := epoAuthBase, epoSearchBase, epoFamilyBase
	epoAuthBase = ts.URL + "/auth"
	epoSearchBase = ts.URL + "/search"
	epoFamilyBase = ts.URL + "/family"

	c := &EPORegistry{
		Client: ts.Client(),
		Cfg: types.RegistryConfig{
			HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
			Key:        "key",
			Secret:     "secret",
		},
	}
	cleanup := func() {
		epoAuthBase, epoSearchBase, epoFamilyBase = oldAuth, oldSearch, oldFamily
		ts.Close()
		_ = gotAuth
	}
	return c, cleanup
}

func TestEPOSearch(t *testing.T) {
	c, cleanup := newEPOServer(t, http.StatusOK, sampleSearchJSON)
	defer cleanup()

	term := types.SearchTerm{Text: "darolutamide", Field: types.FieldTitle, Strategy: types.StrategyTextual}
	matches, err := c.Search(context.Background(), term)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}

	wo := matches[0]
	if wo.CountryCode != "WO" || wo.PublicationID != "2019123456" || wo.KindCode != "A1" {
		t.Errorf("first match = %s%s/%s, want WO2019123456/A1", wo.CountryCode, wo.PublicationID, wo.KindCode)
	}
	if wo.PublicationDate.IsZero() {
		t.Error("publication date should be parsed from docdb id")
	}

	// Second reference arrives as a single object, not a list.
	br := matches[1]
	if br.CountryCode != "BR" || br.PublicationID != "112024001234" {
		t.Errorf("second match = %s%s, want BR112024001234", br.CountryCode, br.PublicationID)
	}
}

func TestEPOSearchCQLField(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth") {
			w.Write([]byte(sampleTokenJSON))
			return
		}
		gotQuery = r.URL.Query().Get("q")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	oldAuth, oldSearch := epoAuthBase, epoSearchBase
	epoAuthBase = ts.URL + "/auth"
	epoSearchBase = ts.URL + "/search"
	defer func() { epoAuthBase, epoSearchBase = oldAuth, oldSearch }()

	c := &EPORegistry{Client: ts.Client(), Cfg: types.RegistryConfig{Key: "k", Secret: "s"}}

	term := types.SearchTerm{Text: "darolutamide polimorfo", Field: types.FieldAbstract}
	if _, err := c.Search(context.Background(), term); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := `ab="darolutamide polimorfo"`; gotQuery != want {
		t.Errorf("CQL query = %q, want %q", gotQuery, want)
	}
}

func TestEPOSearchNoResults(t *testing.T) {
	// OPS reports an empty result set as HTTP 404.
	c, cleanup := newEPOServer(t, http.StatusNotFound, "")
	defer cleanup()

	matches, err := c.Search(context.Background(), types.SearchTerm{Text: "nothing", Field: types.FieldTitle})
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("len(matches) = %d, want 0", len(matches))
	}
}

func TestEPOTokenRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	old := epoAuthBase
	epoAuthBase = ts.URL
	defer func() { epoAuthBase = old }()

	c := &EPORegistry{Client: ts.Client(), Cfg: types.RegistryConfig{Key: "bad", Secret: "bad"}}
	_, err := c.Search(context.Background(), types.SearchTerm{Text: "x", Field: types.FieldTitle})
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
	if KindOf(err) != KindFatal {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindFatal)
	}
}

func TestEPOTokenCached(t *testing.T) {
	var tokenCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/auth") {
			tokenCalls++
			w.Write([]byte(sampleTokenJSON))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	oldAuth, oldSearch := epoAuthBase, epoSearchBase
	epoAuthBase = ts.URL + "/auth"
	epoSearchBase = ts.URL + "/search"
	defer func() { epoAuthBase, epoSearchBase = oldAuth, oldSearch }()

	c := &EPORegistry{Client: ts.Client(), Cfg: types.RegistryConfig{Key: "k", Secret: "s"}}
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), types.SearchTerm{Text: "x", Field: types.FieldTitle}); err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestEPOFamilyMembers(t *testing.T) {
	c, cleanup := newEPOServer(t, http.StatusOK, sampleSearchJSON)
	defer cleanup()

	matches, err := c.FamilyMembers(context.Background(), "WO2019123456")
	if err != nil {
		t.Fatalf("FamilyMembers: %v", err)
	}
	// The query publication itself is excluded from the result.
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.CountryCode != "BR" || m.PublicationID != "112021009876" {
		t.Errorf("member = %s%s, want BR112021009876", m.CountryCode, m.PublicationID)
	}
	if m.RelatedIntl != "WO2019123456" {
		t.Errorf("RelatedIntl = %q, want WO2019123456", m.RelatedIntl)
	}
}
