package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/tenkview/internal/config"
	"github.com/dgallion1/tenkview/internal/pipeline"
	"github.com/dgallion1/tenkview/internal/store"
)

// Server is the HTTP API behind the filing dashboard.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	svc          *pipeline.Service
	store        store.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	svc := orch.Service()
	s := &Server{
		orchestrator: orch,
		svc:          svc,
		store:        svc.Store(),
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/filings", s.handleUpload)
		r.Get("/api/filings", s.handleListFilings)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)

		r.Route("/api/filings/{filename}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteFiling)
			r.Get("/metadata", s.handleMetadata)
			r.Get("/sections", s.handleListSections)
			r.Get("/sections/{sectionID}", s.handleSection)
			r.Get("/risk-factors", s.handleRiskFactors)
			r.Get("/risk-factors/{index}", s.handleRiskFactor)
			r.Get("/tables", s.handleTables)
			r.Get("/tables.xlsx", s.handleTablesXLSX)
		})

		r.Get("/api/stats/extract", s.handleExtractStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
