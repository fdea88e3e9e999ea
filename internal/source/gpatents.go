// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Implements: prd010-aggregation (R3.3);
//
//	docs/ARCHITECTURE § Sources.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/pdiddy/patent-scout/internal/httputil"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// Google Patents endpoint bases. Vars so tests can substitute an
// httptest server.
var (
	gpatentsQueryBase  = "https://patents.google.com/xhr/query"
	gpatentsPatentBase = "https://patents.google.com/patent"
)

// pubNumberRE splits a compact publication number ("BR112024001234B1")
// into country, number, and kind code.
var pubNumberRE = regexp.MustCompile(`^([A-Z]{2})(\d+)([A-Z]\d?)?$`)

// woRefRE finds international publication numbers in page text.
var woRefRE = regexp.MustCompile(`WO\s?(\d{4})/?(\d{6})`)

// GooglePatents queries the public patent search site's JSON endpoint.
type GooglePatents struct {
	Client *http.Client
	Cfg    types.PublicSearchConfig

	// TargetCountry scopes queries to one jurisdiction, e.g. "BR".
	TargetCountry string
}

// Name returns the connector identifier.
func (c *GooglePatents) Name() string { return "gpatents" }

// Search runs one query and returns the publications it matched. The
// target field is advisory here: the site searches full text, so both
// fields map to the same query and dedup happens downstream.
func (c *GooglePatents) Search(ctx context.Context, term types.SearchTerm) ([]types.RawMatch, error) {
	q := fmt.Sprintf("q=%q", term.Text)
	if c.TargetCountry != "" {
		q += " country:" + c.TargetCountry
	}
	params := url.Values{"url": {q}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gpatentsQueryBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, newConnectorError(c.Name(), KindRateLimited, "rate limit exceeded after retries")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newConnectorError(c.Name(), KindTransient, "HTTP %d", resp.StatusCode)
	}

	var env gpatentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "parsing query response: %w", err)
	}

	now := time.Now()
	var matches []types.RawMatch
	for _, cluster := range env.Results.Clusters {
		for _, result := range cluster.Results {
			p := result.Patent
			parts := pubNumberRE.FindStringSubmatch(p.PublicationNumber)
			if parts == nil {
				continue
			}
			m := types.RawMatch{
				Source:        c.Name(),
				CountryCode:   parts[1],
				PublicationID: parts[2],
				KindCode:      parts[3],
				Title:         p.Title,
				Abstract:      p.Snippet,
				Term:          term,
				FetchedAt:     now,
			}
			if p.Assignee != "" {
				m.Applicants = []string{p.Assignee}
			}
			if p.Inventor != "" {
				m.Inventors = []string{p.Inventor}
			}
			if t, perr := time.Parse("2006-01-02", p.FilingDate); perr == nil {
				m.FilingDate = t
			}
			if t, perr := time.Parse("2006-01-02", p.PublicationDate); perr == nil {
				m.PublicationDate = t
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// WOReferences fetches a publication's page and returns the distinct
// international publication numbers referenced in it, in order of first
// appearance. Used to link national filings back to their PCT family.
func (c *GooglePatents) WOReferences(ctx context.Context, pubNumber string) ([]string, error) {
	reqURL := gpatentsPatentBase + "/" + url.PathEscape(pubNumber) + "/en"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "patent page request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newConnectorError(c.Name(), KindTransient, "patent page HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "reading patent page: %w", err)
	}

	seen := make(map[string]bool)
	var refs []string
	for _, mm := range woRefRE.FindAllStringSubmatch(string(body), -1) {
		wo := "WO" + mm[1] + mm[2]
		if !seen[wo] {
			seen[wo] = true
			refs = append(refs, wo)
		}
	}
	return refs, nil
}

// Google Patents JSON structures.
type gpatentsResponse struct {
	Results struct {
		Clusters []gpatentsCluster `json:"cluster"`
	} `json:"results"`
}

type gpatentsCluster struct {
	Results []gpatentsResult `json:"result"`
}

type gpatentsResult struct {
	Patent gpatentsPatent `json:"patent"`
}

type gpatentsPatent struct {
	PublicationNumber string `json:"publication_number"`
	Title             string `json:"title"`
	Snippet           string `json:"snippet"`
	Assignee          string `json:"assignee"`
	Inventor          string `json:"inventor"`
	FilingDate        string `json:"filing_date"`
	PublicationDate   string `json:"publication_date"`
}
