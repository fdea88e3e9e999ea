// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/patent-scout/internal/archive"
	"github.com/pdiddy/patent-scout/internal/job"
	"github.com/pdiddy/patent-scout/internal/source"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// stubConnector answers every term with the same match and optionally
// blocks until its gate closes, to keep a job observable mid-flight.
type stubConnector struct {
	gate chan struct{}
}

func (s *stubConnector) Name() string { return "epo" }

func (s *stubConnector) Search(ctx context.Context, term types.SearchTerm) ([]types.RawMatch, error) {
	if s.gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.gate:
		}
	}
	if term.Text != "darolutamide" {
		return nil, nil
	}
	return []types.RawMatch{
		{Source: "epo", CountryCode: "BR", PublicationID: "112024001234", KindCode: "A2", Title: "Crystalline forms"},
	}, nil
}

func testServer(t *testing.T, conn source.Connector) *Server {
	t.Helper()

	p := &job.Pipeline{
		Cfg: types.PipelineConfig{
			Strategy: types.StrategyConfig{TargetCountry: "BR"},
			Scheduler: types.SchedulerConfig{
				Workers: 4, BatchSize: 7, JobTimeout: 5 * time.Second,
			},
		},
		Stateless: []source.Connector{conn},
		Log:       zerolog.Nop(),
	}

	store, err := archive.Open(types.ArchiveConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &Server{
		Orch:    job.NewOrchestrator(p),
		Archive: store,
		Log:     zerolog.Nop(),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var payload map[string]any
	json.Unmarshal(rec.Body.Bytes(), &payload)
	return rec, payload
}

// waitSucceeded polls the job endpoint until the state is terminal.
func waitSucceeded(t *testing.T, handler http.Handler, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, payload := doJSON(t, handler, http.MethodGet, "/jobs/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /jobs/%s = %d", id, rec.Code)
		}
		switch payload["state"] {
		case string(types.JobSucceeded):
			return
		case string(types.JobFailed):
			t.Fatalf("job failed: %v", payload["error"])
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	rec, payload := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestSubmitInvalidInputs(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	rec, _ := doJSON(t, handler, http.MethodPost, "/jobs", `{"brand":"Nubeqa"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing molecule: status = %d, want 422", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodPost, "/jobs", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

func TestSubmitAndFetchResult(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	rec, payload := doJSON(t, handler, http.MethodPost, "/jobs", `{"molecule":"darolutamide"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := payload["job_id"].(string)
	if id == "" {
		t.Fatal("no job_id in response")
	}

	waitSucceeded(t, handler, id)

	rec, _ = doJSON(t, handler, http.MethodGet, "/jobs/"+id+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d", rec.Code)
	}
	var result types.JobResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.JobID != id {
		t.Errorf("JobID = %s, want %s", result.JobID, id)
	}
	if len(result.Records) != 1 || result.Records[0].ID.String() != "BR112024001234" {
		t.Errorf("Records = %+v", result.Records)
	}
}

func TestResultNotReady(t *testing.T) {
	gate := make(chan struct{})
	srv := testServer(t, &stubConnector{gate: gate})
	handler := srv.Router()

	_, payload := doJSON(t, handler, http.MethodPost, "/jobs", `{"molecule":"darolutamide"}`)
	id := payload["job_id"].(string)

	rec, _ := doJSON(t, handler, http.MethodGet, "/jobs/"+id+"/result", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}

	close(gate)
	waitSucceeded(t, handler, id)
}

func TestUnknownJob(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	for _, path := range []string{"/jobs/nope", "/jobs/nope/result"} {
		rec, _ := doJSON(t, handler, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestListJobs(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	_, payload := doJSON(t, handler, http.MethodPost, "/jobs", `{"molecule":"darolutamide"}`)
	id := payload["job_id"].(string)
	waitSucceeded(t, handler, id)

	rec, _ := doJSON(t, handler, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var jobs []types.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestArchiveFlow(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	_, payload := doJSON(t, handler, http.MethodPost, "/jobs", `{"molecule":"darolutamide"}`)
	id := payload["job_id"].(string)
	waitSucceeded(t, handler, id)

	rec, _ := doJSON(t, handler, http.MethodPost, "/jobs/"+id+"/archive", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("archive status = %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/archive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var summaries []archive.JobSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].JobID != id {
		t.Fatalf("summaries = %+v", summaries)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/archive/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/archive/records?country=BR", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var results []archive.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID.Country != "BR" {
		t.Errorf("results = %+v", results)
	}
}

func TestArchiveNotReady(t *testing.T) {
	gate := make(chan struct{})
	srv := testServer(t, &stubConnector{gate: gate})
	handler := srv.Router()

	_, payload := doJSON(t, handler, http.MethodPost, "/jobs", `{"molecule":"darolutamide"}`)
	id := payload["job_id"].(string)

	rec, _ := doJSON(t, handler, http.MethodPost, "/jobs/"+id+"/archive", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}

	close(gate)
	waitSucceeded(t, handler, id)
}

func TestSearchArchiveBadParams(t *testing.T) {
	srv := testServer(t, &stubConnector{})
	handler := srv.Router()

	rec, _ := doJSON(t, handler, http.MethodGet, "/archive/records?min_confidence=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
