// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/raaihank/gdpr-sentinel/internal/analysis"
	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/raaihank/gdpr-sentinel/internal/logger"
	"github.com/raaihank/gdpr-sentinel/internal/privacy"
	"github.com/raaihank/gdpr-sentinel/internal/store"
	"github.com/raaihank/gdpr-sentinel/internal/taxonomy"
	"github.com/raaihank/gdpr-sentinel/internal/web"
	"github.com/raaihank/gdpr-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info
const Version = "0.1.0"

// ReportStore is the report history used by the API
type ReportStore interface {
	Insert(ctx context.Context, rec *store.Record) error
	Get(ctx context.Context, id string) (*store.Record, error)
	List(ctx context.Context, opts store.ListOptions) ([]*store.Record, error)
	Delete(ctx context.Context, id string) error
	GetStats(ctx context.Context) (*store.Stats, error)
}

// Dependencies are the components the server routes to. Store and Hub may be nil.
type Dependencies struct {
	Pipeline *analysis.Pipeline
	Taxonomy *taxonomy.Taxonomy
	Detector *privacy.Detector
	Store    ReportStore
	Hub      *websocket.Hub
}

// Server represents the HTTP API server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *analysis.Pipeline
	taxonomy *taxonomy.Taxonomy
	detector *privacy.Detector
	store    ReportStore
	wsHub    *websocket.Hub
	limiter  *RateLimiter
	router   *mux.Router
	server   *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("analysis pipeline is required")
	}
	if deps.Taxonomy == nil {
		return nil, fmt.Errorf("taxonomy is required")
	}

	detector := deps.Detector
	if detector == nil {
		var err error
		detector, err = privacy.New(cfg.Privacy, log.WithComponent("privacy").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create privacy detector: %w", err)
		}
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		pipeline: deps.Pipeline,
		taxonomy: deps.Taxonomy,
		detector: detector,
		store:    deps.Store,
		wsHub:    deps.Hub,
		router:   mux.NewRouter(),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.wsHub != nil {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.HandleFunc("/", web.ServeDashboard).Methods(http.MethodGet)
		s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/taxonomy", s.handleTaxonomy).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", s.handleDeleteReport).Methods(http.MethodDelete)
	api.HandleFunc("/reports/{id}/action-plan", s.handleActionPlan).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs background workers and serves until the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting GDPR sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.String("strategy", s.pipeline.Strategy()),
		zap.String("taxonomy_version", s.taxonomy.Version()),
		zap.Bool("store_enabled", s.store != nil),
		zap.Bool("websocket_enabled", s.wsHub != nil),
	)

	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
	if s.limiter != nil {
		go s.limiter.Run(ctx, s.config.RateLimit.CleanupInterval)
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping GDPR sentinel server")
	return s.server.Shutdown(ctx)
}
