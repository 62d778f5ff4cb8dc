// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the content pipeline, the image library and the
// scheduler over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/gateway"
	"github.com/pdiddy/content-engine/internal/metrics"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/store"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ContentGenerator runs the content pipeline.
type ContentGenerator interface {
	Run(ctx context.Context, req types.ContentRequest) (*pipeline.Outcome, error)
}

// ImageService generates and deletes assets.
type ImageService interface {
	Generate(ctx context.Context, articleID string, t types.AssetType, customPrompt string) (*types.AssetRecord, error)
	Delete(ctx context.Context, id string) (*types.AssetRecord, error)
}

// Library reads articles and assets.
type Library interface {
	ListAssets(ctx context.Context, f store.AssetFilter) ([]types.AssetRecord, error)
	GetAsset(ctx context.Context, id string) (*types.AssetRecord, error)
	ListArticles(ctx context.Context, f store.ArticleFilter) ([]types.Article, error)
	GetArticle(ctx context.Context, id string) (*types.Article, error)
	Ping(ctx context.Context) error
}

// Orchestrator controls the scheduler.
type Orchestrator interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() types.OrchestratorState
	Reset(ctx context.Context) error
	RunNow(ctx context.Context) (bool, error)
}

// Detector scores article bodies.
type Detector interface {
	Detect(body string) []types.DetectionCandidate
}

// UsageReporter reports model usage totals.
type UsageReporter interface {
	Totals() map[gateway.Kind]gateway.UsageTotals
}

// Deps holds the server's collaborators. Usage and Metrics may be nil.
type Deps struct {
	Content      ContentGenerator
	Images       ImageService
	Library      Library
	Orchestrator Orchestrator
	Detector     Detector
	Usage        UsageReporter
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cfg        types.ServerConfig
	deps       Deps
	router     http.Handler
	httpServer *http.Server
	logger     *zap.Logger

	// baseCtx outlives requests; the scheduler loop is started with it.
	baseCtx context.Context
}

// NewServer builds the server and its router.
func NewServer(cfg types.ServerConfig, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		deps:    d,
		logger:  d.Logger.Named("api"),
		baseCtx: context.Background(),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. ctx becomes the base context of every
// request and of a scheduler started over HTTP.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
