// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the job orchestrator and archive over HTTP.
// Implements: prd016-serve (R1-R3).
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pdiddy/patent-scout/internal/archive"
	"github.com/pdiddy/patent-scout/internal/job"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// Server routes HTTP requests to the orchestrator and archive.
type Server struct {
	Orch    *job.Orchestrator
	Archive *archive.Store
	Log     zerolog.Logger
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleListJobs)
		r.Get("/{id}", s.handleJob)
		r.Get("/{id}/result", s.handleResult)
		r.Post("/{id}/archive", s.handleArchiveJob)
	})

	r.Route("/archive", func(r chi.Router) {
		r.Get("/", s.handleListArchive)
		r.Get("/records", s.handleSearchArchive)
		r.Get("/{id}", s.handleLoadArchive)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var inputs types.JobInputs
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := s.Orch.Submit(inputs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Orch.List())
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.Orch.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := s.Orch.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch j.State {
	case types.JobSucceeded:
		writeJSON(w, http.StatusOK, j.Result)
	case types.JobFailed:
		writeJSON(w, http.StatusOK, map[string]string{
			"job_id": id,
			"state":  string(types.JobFailed),
			"error":  j.Err,
		})
	default:
		writeError(w, http.StatusConflict, job.ErrNotReady.Error())
	}
}

func (s *Server) handleArchiveJob(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	id := chi.URLParam(r, "id")
	result, err := s.Orch.Result(id)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, job.ErrNotReady):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}

	if err := s.Archive.Save(r.Context(), result); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": id})
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	summaries, err := s.Archive.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleLoadArchive(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	result, err := s.Archive.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchArchive(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	q := r.URL.Query()
	opts := archive.SearchOptions{
		Query:    q.Get("q"),
		Country:  q.Get("country"),
		Source:   q.Get("source"),
		Molecule: q.Get("molecule"),
	}
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		opts.MinConfidence = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.MaxResults = n
	}

	results, err := s.Archive.Search(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
