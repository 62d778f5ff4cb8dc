// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", s.deps.Metrics.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/content/generate", s.handleGenerateContent)

		r.Route("/images", func(r chi.Router) {
			r.Get("/", s.handleListImages)
			r.Post("/generate", s.handleGenerateImage)
			r.Get("/{id}", s.handleGetImage)
			r.Delete("/{id}", s.handleDeleteImage)
		})

		r.Route("/orchestrator", func(r chi.Router) {
			r.Get("/status", s.handleOrchestratorStatus)
			r.Post("/start", s.handleOrchestratorStart)
			r.Post("/stop", s.handleOrchestratorStop)
			r.Post("/run", s.handleOrchestratorRun)
			r.Post("/reset", s.handleOrchestratorReset)
		})

		r.Post("/detect", s.handleDetect)
		r.Get("/articles", s.handleListArticles)
		r.Get("/articles/{id}", s.handleGetArticle)
		r.Get("/usage", s.handleUsage)
	})

	return r
}

// observe logs each request and records it in the HTTP metrics, labelled
// by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			s.deps.Metrics.ObserveHTTP(r.Method, route, status, elapsed)
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("elapsed", elapsed))
		}()
		next.ServeHTTP(ww, r)
	})
}
