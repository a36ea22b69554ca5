// Package server exposes the recognition pipeline over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/angelospk/animatch/internal/constants"
	"github.com/angelospk/animatch/pkg/core/batch"
	"github.com/angelospk/animatch/pkg/core/storage"
)

// Config carries the server-side defaults: credentials and operator
// rule sets loaded from configuration. Per-request fields override
// these.
type Config struct {
	TMDBAPIKey   string
	TMDBProxy    string
	BangumiToken string
	BangumiProxy string
	CustomWords  []string
	CustomGroups []string
	RenderRules  []string
	SpecialRules []string
}

// Server holds everything a request handler needs.
type Server struct {
	cfg          Config
	store        *storage.Store
	specialRules []batch.SpecialRule
	log          *log.Logger
}

// New builds a server. The store may be nil, in which case memory and
// cache lookups simply miss.
func New(cfg Config, store *storage.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		cfg:          cfg,
		store:        store,
		specialRules: batch.ParseSpecialRules(cfg.SpecialRules),
		log:          logger,
	}
}

// Router wires the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Post("/api/recognize", s.handleRecognize)
	return r
}

// ListenAndServe starts the HTTP server on addr, defaulting to the
// standard listen address.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = constants.DefaultListenAddr
	}
	s.log.WithField("addr", addr).Info("recognition service listening")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
