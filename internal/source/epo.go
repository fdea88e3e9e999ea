// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Implements: prd010-aggregation (R3.1-R3.2);
//
//	docs/ARCHITECTURE § Sources.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/patent-scout/internal/httputil"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// OPS endpoint bases. Declared as vars so tests can substitute an
// httptest server.
var (
	epoAuthBase   = "https://ops.epo.org/3.2/auth/accesstoken"
	epoSearchBase = "https://ops.epo.org/3.2/rest-services/published-data/search/biblio"
	epoFamilyBase = "https://ops.epo.org/3.2/rest-services/family/publication/docdb"
)

// tokenSlack renews the OAuth token this long before its stated expiry.
const tokenSlack = time.Minute

// EPORegistry queries the international-filing registry (EPO Open Patent
// Services). Stateless from the scheduler's point of view: the OAuth
// token is an internal cache, not a session.
type EPORegistry struct {
	Client *http.Client
	Cfg    types.RegistryConfig

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// Name returns the connector identifier.
func (c *EPORegistry) Name() string { return "epo" }

// Search runs one CQL query against the published-data endpoint and
// returns the publication references it matched. OPS reports an empty
// result set as HTTP 404, which is not an error here.
func (c *EPORegistry) Search(ctx context.Context, term types.SearchTerm) ([]types.RawMatch, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	cqlField := "ti"
	if term.Field == types.FieldAbstract {
		cqlField = "ab"
	}
	params := url.Values{
		"q":     {fmt.Sprintf("%s=%q", cqlField, term.Text)},
		"Range": {"1-100"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, epoSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newConnectorError(c.Name(), KindRateLimited, "rate limit exceeded after retries")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Token may have been revoked early; drop it so the next term
		// re-authenticates.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, newConnectorError(c.Name(), KindTransient, "HTTP %d, token dropped", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, newConnectorError(c.Name(), KindTransient, "HTTP %d", resp.StatusCode)
	}

	var env opsSearchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "parsing search response: %w", err)
	}

	now := time.Now()
	var matches []types.RawMatch
	for _, ref := range env.WPD.BiblioSearch.Result.PublicationRefs.Items {
		id, ok := ref.docdbID()
		if !ok {
			continue
		}
		m := types.RawMatch{
			Source:        c.Name(),
			CountryCode:   id.Country.Value,
			PublicationID: id.Number.Value,
			KindCode:      id.Kind.Value,
			Term:          term,
			FetchedAt:     now,
		}
		if t, perr := time.Parse("20060102", id.Date.Value); perr == nil {
			m.PublicationDate = t
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// FamilyMembers resolves the national filings descending from an
// international publication (e.g. "WO2019123456"). Each returned match
// carries the source publication in RelatedIntl.
func (c *EPORegistry) FamilyMembers(ctx context.Context, intlPub string) ([]types.RawMatch, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := epoFamilyBase + "/" + url.PathEscape(intlPub) + "/biblio"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "family request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newConnectorError(c.Name(), KindTransient, "family HTTP %d", resp.StatusCode)
	}

	var env opsFamilyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "parsing family response: %w", err)
	}

	now := time.Now()
	var matches []types.RawMatch
	for _, member := range env.WPD.Family.Members.Items {
		id, ok := member.PublicationRef.docdbID()
		if !ok {
			continue
		}
		// The query publication is itself a family member; skip it.
		if id.Country.Value+id.Number.Value == strings.ToUpper(intlPub) {
			continue
		}
		m := types.RawMatch{
			Source:        c.Name(),
			CountryCode:   id.Country.Value,
			PublicationID: id.Number.Value,
			KindCode:      id.Kind.Value,
			RelatedIntl:   strings.ToUpper(intlPub),
			FetchedAt:     now,
		}
		if t, perr := time.Parse("20060102", id.Date.Value); perr == nil {
			m.PublicationDate = t
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// accessToken returns a cached OAuth token, fetching a fresh one via the
// client-credentials grant when the cache is empty or near expiry.
func (c *EPORegistry) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(tokenSlack).Before(c.tokenExp) {
		return c.token, nil
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, epoAuthBase, body)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(c.Cfg.Key, c.Cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", newConnectorError(c.Name(), KindTransient, "token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", newConnectorError(c.Name(), KindFatal, "token rejected: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newConnectorError(c.Name(), KindTransient, "token HTTP %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", newConnectorError(c.Name(), KindTransient, "parsing token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", newConnectorError(c.Name(), KindFatal, "empty access token")
	}

	ttl := 20 * time.Minute
	if secs, perr := strconv.Atoi(tok.ExpiresIn); perr == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.token = tok.AccessToken
	c.tokenExp = time.Now().Add(ttl)
	return c.token, nil
}

// OPS JSON structures. Scalar values arrive wrapped as {"$": "..."} and
// list-valued fields collapse to a single object when there is one
// entry; opsList absorbs both shapes.

type opsString struct {
	Value string `json:"$"`
}

type opsList[T any] struct {
	Items []T
}

func (l *opsList[T]) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(b, &l.Items)
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	l.Items = []T{one}
	return nil
}

type opsDocID struct {
	Type    string    `json:"@document-id-type"`
	Country opsString `json:"country"`
	Number  opsString `json:"doc-number"`
	Kind    opsString `json:"kind"`
	Date    opsString `json:"date"`
}

type opsPubRef struct {
	DocumentIDs opsList[opsDocID] `json:"document-id"`
}

// docdbID picks the docdb-format id, falling back to the first id present.
func (r opsPubRef) docdbID() (opsDocID, bool) {
	for _, id := range r.DocumentIDs.Items {
		if id.Type == "docdb" {
			return id, true
		}
	}
	if len(r.DocumentIDs.Items) > 0 {
		return r.DocumentIDs.Items[0], true
	}
	return opsDocID{}, false
}

type opsSearchEnvelope struct {
	WPD struct {
		BiblioSearch struct {
			Result struct {
				PublicationRefs opsList[opsPubRef] `json:"ops:publication-reference"`
			} `json:"ops:search-result"`
		} `json:"ops:biblio-search"`
	} `json:"ops:world-patent-data"`
}

type opsFamilyEnvelope struct {
	WPD struct {
		Family struct {
			Members opsList[opsFamilyMember] `json:"ops:family-member"`
		} `json:"ops:patent-family"`
	} `json:"ops:world-patent-data"`
}

type opsFamilyMember struct {
	PublicationRef opsPubRef `json:"publication-reference"`
}
