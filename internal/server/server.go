// Package server exposes the run pipeline as an HTTP/JSON API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/export"
	"github.com/aspor-platform/docintake/internal/run"
)

// Server holds the API dependencies and the router.
type Server struct {
	runs     *run.Service
	exporter *export.Service
	store    blob.Store
	signer   *blob.URLSigner
	cfg      *common.Config
	validate *validator.Validate
	log      *slog.Logger
}

func New(runs *run.Service, exporter *export.Service, store blob.Store, signer *blob.URLSigner, cfg *common.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runs:     runs,
		exporter: exporter,
		store:    store,
		signer:   signer,
		cfg:      cfg,
		validate: validator.New(),
		log:      logger,
	}
}

// Router assembles the chi router with middleware and all routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, s.metricsPath(), promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/stats", s.handleStats)
		r.Get("/runs/export", s.handleExportRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Delete("/runs/{runID}", s.handleDeleteRun)
		r.Get("/runs/{runID}/download/{format}", s.handleDownload)
		r.Post("/uploads", s.handlePresignUpload)
	})

	r.Get("/files/{token}", s.handleFileGet)
	r.Put("/files/{token}", s.handleFilePut)

	return r
}

func (s *Server) metricsPath() string {
	if s.cfg.Server.MetricsPath != "" {
		return s.cfg.Server.MetricsPath
	}
	return "/metrics"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
