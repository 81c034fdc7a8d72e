// Package server provides the HTTP surface for the import pipeline: paste,
// upload, URL, and database import endpoints plus table listing and
// refresh.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tableimport/internal/importer"
	"tableimport/internal/registry"
)

// Server routes import requests to the orchestrator.
type Server struct {
	imp    *importer.Importer
	reg    *registry.Registry
	limits importer.Limits
	router *chi.Mux
}

// New constructs the Server and its routes.
func New(imp *importer.Importer, reg *registry.Registry, limits importer.Limits) *Server {
	s := &Server{
		imp:    imp,
		reg:    reg,
		limits: limits,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{tableID}", s.handleGetTable)
		r.Post("/tables/{tableID}/refresh", s.handleRefresh)

		r.Post("/import/paste", s.handleImportPaste)
		r.Post("/import/upload", s.handleImportUpload)
		r.Post("/import/url", s.handleImportURL)
		r.Post("/import/database", s.handleImportDatabase)
	})
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
