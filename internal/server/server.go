// Package server exposes the onboarding and cache management HTTP API.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"image-vault/internal/cachefolder"
	"image-vault/internal/collection"
	"image-vault/internal/database"
	"image-vault/internal/onboarding"
)

// Onboarder runs bulk onboarding requests.
type Onboarder interface {
	Onboard(ctx context.Context, req onboarding.Request) (*collection.BulkResult, error)
}

// Server wires the HTTP API to the engine components.
type Server struct {
	router      *mux.Router
	db          *database.Database
	registry    *cachefolder.Registry
	orchestrate Onboarder
}

// New creates the API server and registers its routes.
func New(db *database.Database, registry *cachefolder.Registry, orchestrate Onboarder) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		db:          db,
		registry:    registry,
		orchestrate: orchestrate,
	}
	s.routes()
	return s
}

// Router returns the configured router for use with http.Server.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(Logging)
	s.router.Use(Metrics)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/onboard", s.handleOnboard).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/folders", s.handleListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders/recalculate", s.handleRecalculateFolders).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/livez", s.handleLivez).Methods(http.MethodGet)
}

// MetricsRouter returns a router serving only the Prometheus endpoint,
// intended for a separate listener.
func MetricsRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return r
}
