package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/worldforge/internal/config"
	"github.com/dgallion1/worldforge/internal/embed"
	"github.com/dgallion1/worldforge/internal/gemini"
	"github.com/dgallion1/worldforge/internal/store"
	"github.com/dgallion1/worldforge/internal/worldgen"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// FunctionCaller resolves a free-text message into generateWorld arguments.
type FunctionCaller interface {
	WorldFunctionCall(ctx context.Context, message string) (*gemini.WorldArgs, error)
}

// Server is the HTTP API server for worldforge.
type Server struct {
	router    chi.Router
	generator *worldgen.Generator
	embedder  *embed.Client
	worlds    *store.Store
	fn        FunctionCaller
	stats     *gemini.Stats
	log       *slog.Logger
	cfg       config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(gen *worldgen.Generator, embedder *embed.Client, worlds *store.Store, fn FunctionCaller, stats *gemini.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		generator: gen,
		embedder:  embedder,
		worlds:    worlds,
		fn:        fn,
		stats:     stats,
		log:       log,
		cfg:       cfg,
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
	r.Get("/stats/llm", s.handleLLMStats)

	r.Post("/generate-world", s.handleGenerateWorld)
	r.Get("/worlds", s.handleListWorlds)
	r.Put("/update-world/{id}", s.handleUpdateWorld)

	r.Post("/similar-worlds-dot", s.handleSimilarDot)
	r.Post("/similar-worlds-cosine", s.handleSimilarCosine)
	r.Post("/similar-worlds-l2", s.handleSimilarL2)

	r.Post("/ai-function-call", s.handleFunctionCall)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": s.stats.Snapshot()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
