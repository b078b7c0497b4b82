package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/render"
	"github.com/MJE43/visual-replay-go/internal/scan"
	"github.com/MJE43/visual-replay-go/internal/scripting"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// handleListEffects returns the registered effects and namespaces
func (s *Server) handleListEffects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, EffectsResponse{
		Effects:       visuals.ListEffects(),
		Namespaces:    seeds.Namespaces(),
		EngineVersion: engine.Version,
	})
}

// handleBuildSeed builds a seed under a registered namespace so clients can
// check their own seed construction
func (s *Server) handleBuildSeed(w http.ResponseWriter, r *http.Request) {
	var req SeedRequest
	if !s.decodeAndValidate(w, r, &req, "Seed") {
		return
	}

	at := s.clock.Now()
	if req.At != nil {
		at = *req.At
	}
	width := s.bucket
	if req.BucketMs > 0 {
		width = msDuration(req.BucketMs)
	}

	seed, err := seeds.Build(req.Namespace, at, width, req.Fields...)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := SeedResponse{
		Seed:     seed.String(),
		SeedHash: seed.Hash(),
		Mode:     seed.Mode(),
		Echo:     req,
	}
	if seed.Mode() == seeds.ModeAmbient {
		b := seeds.BucketAt(at, width)
		resp.Bucket = &b
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDraw returns raw generator output for a seed
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req DrawRequest
	if !s.decodeAndValidate(w, r, &req, "Draw") {
		return
	}

	s.securityLogger.LogAuditEvent(middleware.GetReqID(r.Context()), "draw", "rng", "success", map[string]any{
		"seed":  req.Seed,
		"count": req.Count,
	})

	s.writeJSON(w, http.StatusOK, DrawResponse{
		SeedHash:      seeds.HashText(req.Seed),
		Floats:        engine.Floats(req.Seed, req.Count),
		EngineVersion: engine.Version,
	})
}

// handleRender renders one audited frame
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req render.Request
	if !s.decodeAndValidate(w, r, &req, "Render") {
		return
	}

	res, err := s.render.Render(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogRenderOperation(middleware.GetReqID(r.Context()), "render",
		req.Effect, res.Frame.SeedHash, req.Params, res.Frame.Metric)

	status := http.StatusOK
	if res.RenderID != "" {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, RenderResponse{Result: res, Echo: req})
}

// handleVerify re-renders a frame and compares it with the client's view
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req render.VerifyRequest
	if !s.decodeAndValidate(w, r, &req, "Verify") {
		return
	}

	res, err := s.render.Verify(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogRenderOperation(middleware.GetReqID(r.Context()), "verify",
		req.Effect, res.Frame.SeedHash, req.Params, res.Frame.Metric)
	s.writeJSON(w, http.StatusOK, VerifyResponse{VerifyResult: res, EngineVersion: engine.Version})
}

// handleScan scans a result index range and records the run
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	if !s.decodeAndValidate(w, r, &req, "Scan") {
		return
	}
	if (req.TargetOp == scan.OpBetween || req.TargetOp == scan.OpOutside) && req.TargetVal > req.TargetVal2 {
		s.errorHandler.HandleValidationError(w, r, "target_val2",
			"target_val must be <= target_val2 for range operations", nil)
		return
	}

	s.securityLogger.LogScanOperation(middleware.GetReqID(r.Context()), req)

	res, err := s.scans.Run(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleRunScript executes a user script against the seeded generator
func (s *Server) handleRunScript(w http.ResponseWriter, r *http.Request) {
	var req scripting.Request
	if !s.decodeAndValidate(w, r, &req, "Script") {
		return
	}

	res, err := s.scripts.Run(r.Context(), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogScriptOperation(middleware.GetReqID(r.Context()),
		req.Source, res.SeedHash, res.Draws, res.DurationMs)

	status := http.StatusOK
	if res.RunID != "" {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, ScriptResponse{Result: res, EngineVersion: engine.Version})
}

// handleVersion reports build information
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}
