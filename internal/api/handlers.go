// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/detect"
	"github.com/pdiddy/content-engine/internal/imagegen"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

type generateContentResponse struct {
	Status    pipeline.Status    `json:"status"`
	Article   *types.Article     `json:"article,omitempty"`
	Persisted bool               `json:"persisted"`
	Failure   *failure           `json:"failure,omitempty"`
	Run       *types.PipelineRun `json:"run,omitempty"`
}

type failure struct {
	Stage types.Stage `json:"stage"`
	Error string      `json:"error"`
}

func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req types.ContentRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.deps.Content.Run(r.Context(), req)
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("content generation failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "content generation failed")
		return
	}

	if out.Status == pipeline.Fatal {
		s.respondWithJSON(w, http.StatusBadGateway, map[string]string{
			"error": out.Err.Error(),
			"stage": string(out.Stage),
		})
		return
	}
	resp := generateContentResponse{
		Status:    out.Status,
		Article:   out.Article,
		Persisted: out.Persisted,
		Run:       out.Run,
	}
	if out.Status == pipeline.Partial {
		resp.Failure = &failure{Stage: out.Stage, Error: out.Err.Error()}
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

type generateImageRequest struct {
	ArticleID string `json:"article_id"`
	Type      string `json:"type"`
	Prompt    string `json:"prompt"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ArticleID == "" {
		s.respondWithError(w, http.StatusBadRequest, "article_id is required")
		return
	}
	if req.Type == "" {
		req.Type = string(types.AssetHero)
	}
	t, err := types.ParseAssetType(req.Type)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.deps.Images.Generate(r.Context(), req.ArticleID, t, req.Prompt)
	var ge *imagegen.GenerationError
	if errors.As(err, &ge) {
		code := http.StatusBadGateway
		switch ge.Reason {
		case imagegen.ReasonArticleNotFound:
			code = http.StatusNotFound
		case imagegen.ReasonNoPattern:
			code = http.StatusUnprocessableEntity
		case imagegen.ReasonStorage, imagegen.ReasonLookup:
			code = http.StatusInternalServerError
		}
		s.respondWithJSON(w, code, map[string]string{"error": ge.Error(), "reason": ge.Reason})
		return
	}
	if err != nil {
		s.logger.Error("image generation failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "image generation failed")
		return
	}
	s.respondWithJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AssetFilter{
		ArticleID:         q.Get("article_id"),
		Pattern:           types.PatternType(q.Get("pattern")),
		IncludeSuperseded: q.Get("include_superseded") == "true",
	}
	if v := q.Get("type"); v != "" {
		t, err := types.ParseAssetType(v)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Type = t
	}
	var ok bool
	if f.Limit, ok = s.uintParam(w, r, "limit"); !ok {
		return
	}

	assets, err := s.deps.Library.ListAssets(r.Context(), f)
	if err != nil {
		s.logger.Error("listing assets failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not list images")
		return
	}
	if assets == nil {
		assets = []types.AssetRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"images": assets})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Library.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if s.storeError(w, err, "image") {
		return
	}
	s.respondWithJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Images.Delete(r.Context(), chi.URLParam(r, "id"))
	if s.storeError(w, err, "image") {
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"deleted": rec.ID})
}

func (s *Server) handleOrchestratorStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.deps.Orchestrator.Status())
}

func (s *Server) handleOrchestratorStart(w http.ResponseWriter, r *http.Request) {
	started := s.deps.Orchestrator.Start(s.baseCtx)
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"started": started,
		"status":  s.deps.Orchestrator.Status(),
	})
}

func (s *Server) handleOrchestratorStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.deps.Orchestrator.Stop()
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"stopped": stopped,
		"status":  s.deps.Orchestrator.Status(),
	})
}

func (s *Server) handleOrchestratorRun(w http.ResponseWriter, r *http.Request) {
	triggered, err := s.deps.Orchestrator.RunNow(s.baseCtx)
	if err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !triggered {
		s.respondWithError(w, http.StatusConflict, "a cycle is already in progress")
		return
	}
	s.respondWithJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
}

func (s *Server) handleOrchestratorReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Orchestrator.Reset(r.Context()); err != nil {
		s.logger.Error("resetting scheduler failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not persist reset")
		return
	}
	s.respondWithJSON(w, http.StatusOK, s.deps.Orchestrator.Status())
}

type detectRequest struct {
	Body string `json:"body"`
}

type detectResponse struct {
	Candidates []types.DetectionCandidate `json:"candidates"`
	Top        *types.DetectionCandidate  `json:"top,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp := detectResponse{Candidates: s.deps.Detector.Detect(req.Body)}
	if resp.Candidates == nil {
		resp.Candidates = []types.DetectionCandidate{}
	}
	if top, ok := detect.Top(resp.Candidates); ok {
		resp.Top = &top
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ArticleFilter{
		Status:   types.ArticleStatus(q.Get("status")),
		Category: q.Get("category"),
	}
	var ok bool
	if f.Limit, ok = s.uintParam(w, r, "limit"); !ok {
		return
	}
	if f.Offset, ok = s.uintParam(w, r, "offset"); !ok {
		return
	}

	articles, err := s.deps.Library.ListArticles(r.Context(), f)
	if err != nil {
		s.logger.Error("listing articles failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not list articles")
		return
	}
	if articles == nil {
		articles = []types.Article{}
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Library.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if s.storeError(w, err, "article") {
		return
	}
	s.respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		s.respondWithJSON(w, http.StatusOK, map[string]any{})
		return
	}
	s.respondWithJSON(w, http.StatusOK, s.deps.Usage.Totals())
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"store": "healthy"}
	if err := s.deps.Library.Ping(ctx); err != nil {
		healthStatus["store"] = "unhealthy"
		s.logger.Error("health check failed for store", zap.Error(err))
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return n, true
}

// storeError writes the response for a failed lookup and reports whether
// there was an error.
func (s *Server) storeError(w http.ResponseWriter, err error, what string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, what+" not found")
	default:
		s.logger.Error("store lookup failed", zap.String("what", what), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "could not load "+what)
	}
	return true
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encoding response failed", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"encoding response failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
