package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgallion1/worldforge/internal/store"
	"github.com/go-chi/chi/v5"
)

type worldRequest struct {
	Biome   string `json:"biome"`
	Culture string `json:"culture"`
	Tone    string `json:"tone"`
}

func (s *Server) handleGenerateWorld(w http.ResponseWriter, r *http.Request) {
	var req worldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Biome == "" || req.Culture == "" || req.Tone == "" {
		jsonError(w, "biome, culture and tone are required", http.StatusBadRequest)
		return
	}

	world, ok := s.generateAndStore(r.Context(), w, req.Biome, req.Culture, req.Tone)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "World generated",
		"world":   world,
	})
}

// generateAndStore runs the generate → embed → append sequence shared by
// the generation and function-call handlers. On failure it writes the error
// response itself and returns ok=false.
func (s *Server) generateAndStore(ctx context.Context, w http.ResponseWriter, biome, culture, tone string) (store.World, bool) {
	draft, err := s.generator.Generate(ctx, biome, culture, tone)
	if err != nil {
		// Only reachable under the fail-closed policy.
		jsonError(w, "world generation failed", http.StatusBadGateway)
		return store.World{}, false
	}

	embedding, err := s.embedder.Embed(ctx, draft.EmbeddingInput())
	if err != nil {
		// The world is still stored; it just cannot participate in
		// similarity search.
		s.log.Warn("embedding unavailable for new world", "error", err)
		embedding = nil
	}

	world := s.worlds.Append(store.World{
		Reasoning: draft.Reasoning,
		Summary:   draft.Summary,
		Biome:     draft.Biome,
		Culture:   draft.Culture,
		Tone:      draft.Tone,
		Myth:      draft.Myth,
		Embedding: embedding,
	})
	return world, true
}

func (s *Server) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"worlds": s.worlds.List()})
}

func (s *Server) handleUpdateWorld(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		jsonError(w, "invalid world id", http.StatusBadRequest)
		return
	}

	var patch store.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	before, after, ok := s.worlds.Update(id, patch)
	if !ok {
		jsonError(w, "world not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "World updated",
		"before":  before,
		"after":   after,
	})
}

type functionCallRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleFunctionCall(w http.ResponseWriter, r *http.Request) {
	var req functionCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	args, err := s.fn.WorldFunctionCall(r.Context(), req.Message)
	if err != nil {
		s.log.Error("function call failed", "error", err)
		jsonError(w, "no valid function call returned", http.StatusBadGateway)
		return
	}

	world, ok := s.generateAndStore(r.Context(), w, args.Biome, args.Culture, args.Tone)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Function call successful",
		"functionCall": map[string]any{
			"name": "generateWorld",
			"args": map[string]string{
				"biome":   args.Biome,
				"culture": args.Culture,
				"tone":    args.Tone,
			},
		},
		"world": world,
	})
}
