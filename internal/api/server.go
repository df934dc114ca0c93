package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docdigest/internal/config"
	"github.com/dgallion1/docdigest/internal/extract"
	"github.com/dgallion1/docdigest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docdigest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llm          *extract.Measured
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. llm may be nil, in which
// case the stats endpoint reports unavailable.
func NewServer(orch *pipeline.Orchestrator, llm *extract.Measured, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		llm:          llm,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/runs", s.handleCreateRun)
		r.Post("/api/runs/batch", s.handleBatchRuns)
		r.Route("/api/runs/{jobID}", func(r chi.Router) {
			r.Get("/status", s.handleRunStatus)
			r.Get("/artifact", s.handleRunArtifact)
			r.Get("/entries", s.handleRunEntries)
		})
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
