// Package server exposes the JSON API: triggering ingestion, polling jobs and
// their event logs, and reading section pages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridwire/gridwire/internal/database"
	"github.com/gridwire/gridwire/internal/ingest"
	"github.com/gridwire/gridwire/internal/retrieval"
)

// Server is the HTTP server for the aggregation API.
type Server struct {
	db        *database.DB
	orch      *ingest.Orchestrator
	retrieval *retrieval.Service
	log       *zap.SugaredLogger
	mux       *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB, orch *ingest.Orchestrator, svc *retrieval.Service, log *zap.SugaredLogger) *Server {
	s := &Server{db: db, orch: orch, retrieval: svc, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/ingest", s.handleIngest)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJob)
	s.mux.HandleFunc("/api/section/", s.handleSection)
	s.mux.HandleFunc("/api/sources", s.handleSources)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.db.GetStats(); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest accepts an ingestion request, creates a job, and returns it
// immediately. The work itself runs in the background; callers poll the job.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := ingest.Params{Scope: ingest.ScopeAllowed}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if params.Scope == "" {
		params.Scope = ingest.ScopeAllowed
	}

	// The request context dies with the response; background work gets its own.
	job, err := s.orch.Trigger(context.Background(), params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infow("ingestion triggered", "job", job.ID, "scope", params.Scope)
	s.writeJSON(w, http.StatusAccepted, jobResponse(job))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.db.ListJobs(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing jobs failed")
		return
	}

	out := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobResponse(&jobs[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// handleJob serves /api/jobs/{id} and /api/jobs/{id}/events.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "job id required")
		return
	}

	job, err := s.db.GetJob(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading job failed")
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch sub {
	case "":
		s.writeJSON(w, http.StatusOK, jobResponse(job))
	case "events":
		s.handleJobEvents(w, r, job)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

// handleJobEvents returns the ordered event tail strictly after the ?after
// sequence number, so clients can poll incrementally without re-reading.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request, job *database.Job) {
	after, err := parseAfter(r.URL.Query().Get("after"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.db.GetEvents(job.ID, after)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "loading events failed")
		return
	}

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		entry := map[string]any{
			"seq":        e.Seq,
			"level":      e.Level,
			"message":    e.Message,
			"created_at": e.CreatedAt,
		}
		if e.Meta != nil {
			entry["meta"] = json.RawMessage(*e.Meta)
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"terminal": job.Terminal(),
		"events":   out,
	})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/api/section/")
	if strings.Contains(key, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	q := retrieval.Query{Section: key}
	query := r.URL.Query()
	if v := query.Get("window_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			s.writeError(w, http.StatusBadRequest, "window_hours must be a positive integer")
			return
		}
		q.Window = time.Duration(hours) * time.Hour
	}
	q.Week, _ = strconv.Atoi(query.Get("week"))
	q.Provider = query.Get("provider")
	q.Cap, _ = strconv.Atoi(query.Get("cap"))
	q.Limit, _ = strconv.Atoi(query.Get("limit"))
	q.Offset, _ = strconv.Atoi(query.Get("offset"))

	page, err := s.retrieval.GetSection(q)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sources, err := s.db.GetSources(false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing sources failed")
		return
	}

	out := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		out = append(out, map[string]any{
			"id":              src.ID,
			"name":            src.Name,
			"provider":        src.Provider,
			"allowed":         src.Allowed,
			"priority":        src.Priority,
			"last_fetched_at": src.LastFetchedAt,
			"last_error":      src.LastError,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func jobResponse(j *database.Job) map[string]any {
	out := map[string]any{
		"id":          j.ID,
		"type":        j.Type,
		"status":      j.Status,
		"terminal":    j.Terminal(),
		"progress":    j.Progress,
		"message":     j.Message,
		"error":       j.Error,
		"created_at":  j.CreatedAt,
		"started_at":  j.StartedAt,
		"finished_at": j.FinishedAt,
	}
	if j.Params != nil {
		out["params"] = json.RawMessage(*j.Params)
	}
	return out
}

func parseAfter(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || after < 0 {
		return 0, fmt.Errorf("after must be a non-negative integer")
	}
	return after, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnw("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// Serve starts the HTTP server on the given port.
func (s *Server) Serve(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.log.Infow("server listening", "addr", "http://"+addr)
	return http.ListenAndServe(addr, s.Handler())
}
