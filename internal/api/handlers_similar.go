package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/dgallion1/worldforge/internal/vector"
)

type queryRequest struct {
	Query string `json:"query"`
	TopN  int    `json:"topN"`
}

type metricFunc func(a, b []float32) (float64, bool)

func (s *Server) handleSimilarDot(w http.ResponseWriter, r *http.Request) {
	s.handleSimilar(w, r, "score", vector.Dot, false)
}

func (s *Server) handleSimilarCosine(w http.ResponseWriter, r *http.Request) {
	s.handleSimilar(w, r, "similarity", vector.Cosine, false)
}

func (s *Server) handleSimilarL2(w http.ResponseWriter, r *http.Request) {
	s.handleSimilar(w, r, "distance", vector.Euclidean, true)
}

// handleSimilar ranks stored worlds against the query embedding. Worlds
// without an embedding never participate. ascending selects distance-style
// ordering (lower is better).
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request, valueKey string, metric metricFunc, ascending bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	topN := req.TopN
	if topN <= 0 {
		topN = s.cfg.DefaultTopN
	}

	queryEmbedding, err := s.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		jsonError(w, "query embedding failed", http.StatusInternalServerError)
		return
	}

	type scored struct {
		id      int
		summary string
		tone    string
		value   float64
	}
	var ranked []scored
	for _, world := range s.worlds.List() {
		if world.Embedding == nil {
			continue
		}
		v, ok := metric(queryEmbedding, world.Embedding)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{
			id:      world.ID,
			summary: world.Summary,
			tone:    world.Tone,
			value:   v,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ascending {
			return ranked[i].value < ranked[j].value
		}
		return ranked[i].value > ranked[j].value
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	matches := make([]map[string]any, 0, len(ranked))
	for _, m := range ranked {
		matches = append(matches, map[string]any{
			"id":      m.id,
			"summary": m.summary,
			"tone":    m.tone,
			valueKey:  m.value,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
