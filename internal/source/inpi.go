// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Implements: prd010-aggregation (R3.4), prd011-session (R1);
//
//	docs/ARCHITECTURE § Sources.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// inpiBase is the national office search portal root. Var so tests can
// substitute an httptest server.
var inpiBase = "https://busca.inpi.gov.br/pePI"

// Markers in the portal's HTML that classify a response. The portal
// answers every request with HTTP 200; state lives in the markup.
const (
	inpiNoResultsMarker = "Nenhum resultado foi encontrado"
	inpiLoginFormMarker = `name="T_Login"`
)

// inpiRowRE extracts one result row: detail link, process number,
// deposit date, title cell.
var inpiRowRE = regexp.MustCompile(
	`(?s)<a[^>]*href="([^"]*PatenteServletController[^"]*)"[^>]*>\s*([A-Z]{2}[\d\s./-]+?)\s*</a>\s*</td>\s*` +
		`<td[^>]*>\s*(\d{2}/\d{2}/\d{4})?\s*</td>\s*<td[^>]*>(.*?)</td>`)

// htmlTagRE strips markup left inside a table cell.
var htmlTagRE = regexp.MustCompile(`<[^>]+>`)

// Detail-page cell extractors: a labelled cell followed by its value
// cell. Labels are matched by prefix so accent encodings do not matter.
var (
	inpiApplicantRE = inpiCellRE("Depositante")
	inpiInventorRE  = inpiCellRE("Inventor")
	inpiIPCRE       = inpiCellRE("Classifica")
	inpiPubDateRE   = inpiCellRE("Data da Publica")
	inpiAbstractRE  = inpiCellRE("Resumo")
)

func inpiCellRE(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + label + `[^<]*</td>\s*<td[^>]*>(.*?)</td>`)
}

// ipcCodeRE matches an international classification code such as
// "A61K 31/4155".
var ipcCodeRE = regexp.MustCompile(`[A-H]\d{2}[A-Z]\s?\d{1,4}/\d{2,8}`)

// INPIOffice queries the authenticated national office portal. It is the
// stateful source: every search needs a logged-in session, and the
// portal expires sessions aggressively. All access goes through the
// session manager.
type INPIOffice struct {
	Cfg types.OfficeConfig
}

// Name returns the connector identifier.
func (c *INPIOffice) Name() string { return "inpi" }

// Login establishes a fresh portal session: fetch the portal root to
// obtain a session cookie, then post the login form. The returned
// session owns an HTTP client whose cookie jar carries the
// authenticated state.
func (c *INPIOffice) Login(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: c.Cfg.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inpiBase+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("creating portal request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &AuthError{Source: c.Name(), Err: fmt.Errorf("portal unreachable: %w", err)}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	form := url.Values{
		"T_Login": {c.Cfg.Username},
		"T_Senha": {c.Cfg.Password},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost,
		inpiBase+"/servlet/LoginController", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err = client.Do(req)
	if err != nil {
		return nil, &AuthError{Source: c.Name(), Err: fmt.Errorf("login request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Source: c.Name(), Err: fmt.Errorf("reading login response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Source: c.Name(), Err: fmt.Errorf("login HTTP %d", resp.StatusCode)}
	}
	// A rejected login re-renders the login form.
	if strings.Contains(string(body), inpiLoginFormMarker) {
		return nil, &AuthError{Source: c.Name(), Err: fmt.Errorf("credentials rejected")}
	}

	return &Session{Client: client, EstablishedAt: time.Now()}, nil
}

// SearchWithSession posts one basic search under the given session. An
// expired session is detected by the login form reappearing in the
// response and reported as KindSessionExpired for the manager to handle.
func (c *INPIOffice) SearchWithSession(ctx context.Context, sess *Session, term types.SearchTerm) ([]types.RawMatch, error) {
	column := "Titulo"
	if term.Field == types.FieldAbstract {
		column = "Resumo"
	}
	form := url.Values{
		"ExpressaoPesquisa": {term.Text},
		"Coluna":            {column},
		"FormaPesquisa":     {"todasPalavras"},
		"RegisterPerPage":   {"100"},
		"Action":            {"SearchBasico"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		inpiBase+"/servlet/PatenteSearchBasico", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := sess.Client.Do(req)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, newConnectorError(c.Name(), KindRateLimited, "rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newConnectorError(c.Name(), KindTransient, "HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newConnectorError(c.Name(), KindTransient, "reading search response: %w", err)
	}
	body := string(raw)

	if strings.Contains(body, inpiLoginFormMarker) {
		return nil, newConnectorError(c.Name(), KindSessionExpired, "portal returned login form")
	}
	if strings.Contains(body, inpiNoResultsMarker) {
		return nil, nil
	}

	now := time.Now()
	var matches []types.RawMatch
	for _, row := range inpiRowRE.FindAllStringSubmatch(body, -1) {
		m := types.RawMatch{
			Source:        c.Name(),
			PublicationID: strings.TrimSpace(row[2]),
			Title:         strings.TrimSpace(htmlTagRE.ReplaceAllString(row[4], "")),
			Term:          term,
			FetchedAt:     now,
		}
		if t, perr := time.Parse("02/01/2006", row[3]); perr == nil {
			m.FilingDate = t
		}
		c.enrichFromDetail(ctx, sess, row[1], &m)
		matches = append(matches, m)
	}
	if len(matches) == 0 {
		// Neither rows nor the explicit no-results marker: the portal
		// changed its markup or returned an error page.
		return nil, newConnectorError(c.Name(), KindTransient, "unrecognized search response")
	}
	return matches, nil
}

// enrichFromDetail fetches a result's detail page and fills in the
// fields the result table does not carry: applicants, inventors,
// classification codes, publication date, abstract, and PCT/WO cross
// references. Enrichment is best effort; any failure leaves the basic
// match untouched.
func (c *INPIOffice) enrichFromDetail(ctx context.Context, sess *Session, href string, m *types.RawMatch) {
	base, err := url.Parse(inpiBase)
	if err != nil {
		return
	}
	ref, err := url.Parse(strings.ReplaceAll(href, "&amp;", "&"))
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := sess.Client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	body := string(raw)
	if strings.Contains(body, inpiLoginFormMarker) {
		return
	}

	m.LocalID = ref.Query().Get("CodPedido")

	if v := detailCell(body, inpiApplicantRE); v != "" {
		m.Applicants = splitNames(v)
	}
	if v := detailCell(body, inpiInventorRE); v != "" {
		m.Inventors = splitNames(v)
	}
	if v := detailCell(body, inpiIPCRE); v != "" {
		m.IPCCodes = ipcCodeRE.FindAllString(v, -1)
	}
	if t, perr := time.Parse("02/01/2006", detailCell(body, inpiPubDateRE)); perr == nil {
		m.PublicationDate = t
	}
	if v := detailCell(body, inpiAbstractRE); v != "" && m.Abstract == "" {
		m.Abstract = v
	}
	if wo := woRefRE.FindStringSubmatch(body); wo != nil {
		m.RelatedIntl = "WO" + wo[1] + wo[2]
	}
}

func detailCell(body string, re *regexp.Regexp) string {
	sub := re.FindStringSubmatch(body)
	if sub == nil {
		return ""
	}
	return strings.TrimSpace(htmlTagRE.ReplaceAllString(sub[1], ""))
}

// splitNames splits a multi-party cell on semicolons.
func splitNames(v string) []string {
	var names []string
	for _, part := range strings.Split(v, ";") {
		if p := strings.TrimSpace(part); p != "" {
			names = append(names, p)
		}
	}
	return names
}
