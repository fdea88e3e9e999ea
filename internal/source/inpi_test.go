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

const inpiLoginPage = `<html><form action="/pePI/servlet/LoginController" method="post">
  <input type="text" name="T_Login"><input type="password" name="T_Senha">
</form></html>`

const inpiWelcomePage = `<html><body>Pesquisa Básica — Consultar por:</body></html>`

const inpiResultsPage = `<html><body><table>
<tr>
  <td><a href="/pePI/servlet/PatenteServletController?Action=detail&CodPedido=1077915">BR 11 2024 001234-5</a></td>
  <td>15/01/2024</td>
  <td><b>COMPOSIÇÃO FARMACÊUTICA COMPREENDENDO DAROLUTAMIDA</b></td>
</tr>
<tr>
  <td><a href="/pePI/servlet/PatenteServletController?Action=detail&CodPedido=1077916">PI 0902345-6</a></td>
  <td></td>
  <td>FORMA CRISTALINA</td>
</tr>
</table></body></html>`

const inpiNoResultsPage = `<html><body>Nenhum resultado foi encontrado para a sua pesquisa.</body></html>`

const inpiDetailPage = `<html><body><table>
<tr><td>Depositante:</td><td>BAYER AG; ORION CORPORATION</td></tr>
<tr><td>Inventor:</td><td>JOHN SMITH</td></tr>
<tr><td>Classificação IPC:</td><td><a href="#">A61K 31/4155</a> <a href="#">A61P 35/00</a></td></tr>
<tr><td>Data da Publicação:</td><td>01/07/2025</td></tr>
<tr><td>Resumo:</td><td>COMPOSIÇÃO FARMACÊUTICA COMPREENDENDO DAROLUTAMIDA E EXCIPIENTES.</td></tr>
<tr><td>PCT:</td><td>WO 2019/123456</td></tr>
</table></body></html>`

// newINPIServer simulates the portal: login issues a session cookie and
// searches require it.
func newINPIServer(t *testing.T, searchBody string) (*INPIOffice, *httptest.Server, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pePI/", "/pePI":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.Write([]byte(inpiLoginPage))
		case "/pePI/servlet/LoginController":
			if r.FormValue("T_Login") != "user" || r.FormValue("T_Senha") != "pass" {
				w.Write([]byte(inpiLoginPage))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "authed"})
			w.Write([]byte(inpiWelcomePage))
		case "/pePI/servlet/PatenteSearchBasico":
			cookie, err := r.Cookie("JSESSIONID")
			if err != nil || cookie.Value != "authed" {
				w.Write([]byte(inpiLoginPage))
				return
			}
			w.Write([]byte(searchBody))
		case "/pePI/servlet/PatenteServletController":
			// Detail page exists only for the first fixture row.
			if r.URL.Query().Get("CodPedido") != "1077915" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(inpiDetailPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	old := inpiBase
	inpiBase = ts.URL + "/pePI"

	c := &INPIOffice{Cfg: types.OfficeConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		Username:   "user",
		Password:   "pass",
	}}
	cleanup := func() {
		inpiBase = old
		ts.Close()
	}
	return c, ts, cleanup
}

func TestINPILoginAndSearch(t *testing.T) {
	c, _, cleanup := newINPIServer(t, inpiResultsPage)
	defer cleanup()

	sess, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	term := types.SearchTerm{Text: "darolutamida", Field: types.FieldTitle, Strategy: types.StrategyTextual}
	matches, err := c.SearchWithSession(context.Background(), sess, term)
	if err != nil {
		t.Fatalf("SearchWithSession: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}

	first := matches[0]
	if first.PublicationID != "BR 11 2024 001234-5" {
		t.Errorf("PublicationID = %q", first.PublicationID)
	}
	if first.Title != "COMPOSIÇÃO FARMACÊUTICA COMPREENDENDO DAROLUTAMIDA" {
		t.Errorf("Title = %q, markup should be stripped", first.Title)
	}
	if first.FilingDate.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("FilingDate = %v", first.FilingDate)
	}

	// Second row has no deposit date; that is not an error.
	if matches[1].PublicationID != "PI 0902345-6" || !matches[1].FilingDate.IsZero() {
		t.Errorf("second match = %+v", matches[1])
	}
}

func TestINPIDetailEnrichment(t *testing.T) {
	c, _, cleanup := newINPIServer(t, inpiResultsPage)
	defer cleanup()

	sess, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	matches, err := c.SearchWithSession(context.Background(), sess,
		types.SearchTerm{Text: "darolutamida", Field: types.FieldTitle})
	if err != nil {
		t.Fatalf("SearchWithSession: %v", err)
	}

	first := matches[0]
	if first.LocalID != "1077915" {
		t.Errorf("LocalID = %q", first.LocalID)
	}
	wantApplicants := []string{"BAYER AG", "ORION CORPORATION"}
	if len(first.Applicants) != 2 || first.Applicants[0] != wantApplicants[0] || first.Applicants[1] != wantApplicants[1] {
		t.Errorf("Applicants = %v, want %v", first.Applicants, wantApplicants)
	}
	if len(first.Inventors) != 1 || first.Inventors[0] != "JOHN SMITH" {
		t.Errorf("Inventors = %v", first.Inventors)
	}
	if len(first.IPCCodes) != 2 || first.IPCCodes[0] != "A61K 31/4155" || first.IPCCodes[1] != "A61P 35/00" {
		t.Errorf("IPCCodes = %v", first.IPCCodes)
	}
	if first.PublicationDate.Format("2006-01-02") != "2025-07-01" {
		t.Errorf("PublicationDate = %v", first.PublicationDate)
	}
	if !strings.Contains(first.Abstract, "DAROLUTAMIDA") {
		t.Errorf("Abstract = %q", first.Abstract)
	}
	if first.RelatedIntl != "WO2019123456" {
		t.Errorf("RelatedIntl = %q", first.RelatedIntl)
	}

	// The second row's detail page does not exist; the basic match
	// survives unenriched.
	second := matches[1]
	if second.Applicants != nil || second.RelatedIntl != "" {
		t.Errorf("second match should be unenriched: %+v", second)
	}
}

func TestINPISearchColumnMapping(t *testing.T) {
	var gotColumn string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pePI/servlet/PatenteSearchBasico" {
			gotColumn = r.FormValue("Coluna")
			w.Write([]byte(inpiNoResultsPage))
			return
		}
		w.Write([]byte(inpiWelcomePage))
	}))
	defer ts.Close()

	old := inpiBase
	inpiBase = ts.URL + "/pePI"
	defer func() { inpiBase = old }()

	c := &INPIOffice{}
	sess := &Session{Client: ts.Client(), EstablishedAt: time.Now()}

	for field, want := range map[types.TargetField]string{
		types.FieldTitle:    "Titulo",
		types.FieldAbstract: "Resumo",
	} {
		_, err := c.SearchWithSession(context.Background(), sess, types.SearchTerm{Text: "x", Field: field})
		if err != nil {
			t.Fatalf("SearchWithSession(%s): %v", field, err)
		}
		if gotColumn != want {
			t.Errorf("Coluna for %s = %q, want %q", field, gotColumn, want)
		}
	}
}

func TestINPINoResults(t *testing.T) {
	c, _, cleanup := newINPIServer(t, inpiNoResultsPage)
	defer cleanup()

	sess, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	matches, err := c.SearchWithSession(context.Background(), sess, types.SearchTerm{Text: "nothing", Field: types.FieldTitle})
	if err != nil {
		t.Fatalf("no results should not be an error: %v", err)
	}
	if matches != nil {
		t.Errorf("matches = %v, want nil", matches)
	}
}

func TestINPISessionExpired(t *testing.T) {
	c, _, cleanup := newINPIServer(t, inpiResultsPage)
	defer cleanup()

	// A session whose cookie jar the server does not recognize: the
	// portal re-renders the login form instead of results.
	sess := &Session{Client: &http.Client{}, EstablishedAt: time.Now()}
	_, err := c.SearchWithSession(context.Background(), sess, types.SearchTerm{Text: "x", Field: types.FieldTitle})
	if !IsSessionExpired(err) {
		t.Fatalf("expected session-expired error, got %v", err)
	}
}

func TestINPILoginRejected(t *testing.T) {
	c, _, cleanup := newINPIServer(t, inpiResultsPage)
	defer cleanup()

	c.Cfg.Password = "wrong"
	_, err := c.Login(context.Background())
	if !IsAuthFailed(err) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestINPIUnrecognizedResponse(t *testing.T) {
	c, _, cleanup := newINPIServer(t, "<html><body>Erro interno</body></html>")
	defer cleanup()

	sess, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err = c.SearchWithSession(context.Background(), sess, types.SearchTerm{Text: "x", Field: types.FieldTitle})
	if err == nil || KindOf(err) != KindTransient {
		t.Fatalf("expected transient error for unknown markup, got %v", err)
	}
	if !strings.Contains(err.Error(), "unrecognized") {
		t.Errorf("err = %v", err)
	}
}
