package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/store"
)

const defaultPerPage = 50

// requireStore writes a 503 when persistence is disabled.
func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.db == nil {
		s.errorHandler.HandleError(w, r, render.ErrNoStore)
		return false
	}
	return true
}

// pageParams reads page and per_page from the query string.
func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, ok := s.intQuery(w, r, "page", 1)
	if !ok {
		return 0, 0, false
	}
	perPage, ok := s.intQuery(w, r, "per_page", defaultPerPage)
	if !ok {
		return 0, 0, false
	}
	return page, perPage, true
}

func (s *Server) intQuery(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.errorHandler.HandleValidationError(w, r, key, "must be a non-negative integer", nil)
		return 0, false
	}
	return n, true
}

func (s *Server) handleListRenders(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	page, perPage, ok := s.pageParams(w, r)
	if !ok {
		return
	}

	list, err := s.db.ListRenders(r.Context(), store.RendersQuery{
		Effect:  r.URL.Query().Get("effect"),
		Mode:    r.URL.Query().Get("mode"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRender(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	rec, err := s.db.GetRender(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := StoredRenderResponse{Render: rec}
	if json.Valid([]byte(rec.FrameJSON)) {
		resp.Frame = json.RawMessage(rec.FrameJSON)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyStored(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	res, err := s.render.VerifyStored(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, VerifyResponse{VerifyResult: res, EngineVersion: engine.Version})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	page, perPage, ok := s.pageParams(w, r)
	if !ok {
		return
	}

	list, err := s.db.ListRuns(r.Context(), store.RunsQuery{
		Effect:  r.URL.Query().Get("effect"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleGetScan returns a run and one page of its hits
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	page, perPage, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := s.db.GetRun(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	hits, err := s.db.GetRunHits(r.Context(), id, page, perPage)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RunResponse{Run: run, Hits: hits})
}

func (s *Server) handleListScriptRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	page, perPage, ok := s.pageParams(w, r)
	if !ok {
		return
	}

	list, err := s.db.ListScriptRuns(r.Context(), store.ScriptRunsQuery{
		SourceHash: r.URL.Query().Get("source_hash"),
		Mode:       r.URL.Query().Get("mode"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetScriptRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	rec, err := s.db.GetScriptRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := ScriptRunResponse{Run: rec}
	if json.Valid([]byte(rec.RequestJSON)) {
		resp.Request = json.RawMessage(rec.RequestJSON)
	}
	if json.Valid([]byte(rec.OutputJSON)) {
		resp.Output = json.RawMessage(rec.OutputJSON)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleReplayScript re-runs a recorded script and compares the result
func (s *Server) handleReplayScript(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	res, err := s.scripts.Replay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	outcome := "match"
	if !res.Match {
		outcome = "mismatch"
	}
	s.securityLogger.LogAuditEvent(middleware.GetReqID(r.Context()), "replay", "script", outcome, map[string]any{
		"seed_hash": res.Result.SeedHash,
		"draws":     res.Result.Draws,
	})
	s.writeJSON(w, http.StatusOK, ReplayResponse{ReplayResult: res, EngineVersion: engine.Version})
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
