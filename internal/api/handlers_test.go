package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/worldforge/internal/config"
	"github.com/dgallion1/worldforge/internal/embed"
	"github.com/dgallion1/worldforge/internal/gemini"
	"github.com/dgallion1/worldforge/internal/store"
	"github.com/dgallion1/worldforge/internal/worldgen"
)

const modelReply = `Some reasoning. {"summary":"S","biome":"desert","culture":"nomadic","tone":"mystical","myth":"M"}`

type stubModel struct {
	reply string
	err   error
}

func (m *stubModel) GenerateText(context.Context, string) (string, error) {
	return m.reply, m.err
}

type stubProvider struct {
	vec []float32
	err error
}

func (p *stubProvider) EmbedText(context.Context, string) ([]float32, error) {
	return p.vec, p.err
}

type stubCaller struct {
	args *gemini.WorldArgs
	err  error
}

func (c *stubCaller) WorldFunctionCall(context.Context, string) (*gemini.WorldArgs, error) {
	return c.args, c.err
}

type testEnv struct {
	server *Server
	worlds *store.Store
	model  *stubModel
	embeds *stubProvider
	caller *stubCaller
}

func newTestEnv(failClosed bool) *testEnv {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := &stubModel{reply: modelReply}
	embeds := &stubProvider{vec: []float32{0.1, 0.2}}
	caller := &stubCaller{}
	worlds := store.New()

	srv := NewServer(
		worldgen.NewGenerator(model, log, failClosed),
		embed.NewClient(embeds, log, 0, 0),
		worlds,
		caller,
		gemini.NewStats(0),
		log,
		config.Config{DefaultTopN: 3},
	)
	return &testEnv{server: srv, worlds: worlds, model: model, embeds: embeds, caller: caller}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGenerateWorld_StoresParsedWorld(t *testing.T) {
	env := newTestEnv(false)

	rec := env.do(t, http.MethodPost, "/generate-world",
		map[string]string{"biome": "desert", "culture": "nomadic", "tone": "mystical"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	world, ok := body["world"].(map[string]any)
	if !ok {
		t.Fatalf("expected world object, got %v", body)
	}
	if world["id"].(float64) != 1 {
		t.Errorf("expected id=1, got %v", world["id"])
	}
	if world["reasoning"] != "Some reasoning." {
		t.Errorf("expected reasoning %q, got %v", "Some reasoning.", world["reasoning"])
	}
	if world["summary"] != "S" || world["myth"] != "M" {
		t.Errorf("expected parsed summary/myth, got %v", world)
	}
	if world["embedding"] == nil {
		t.Error("expected embedding in response")
	}

	// A second generation gets the next id.
	rec = env.do(t, http.MethodPost, "/generate-world",
		map[string]string{"biome": "desert", "culture": "nomadic", "tone": "mystical"})
	world = decodeBody(t, rec)["world"].(map[string]any)
	if world["id"].(float64) != 2 {
		t.Errorf("expected id=2 for second world, got %v", world["id"])
	}
	if env.worlds.Len() != 2 {
		t.Errorf("expected 2 stored worlds, got %d", env.worlds.Len())
	}
}

func TestGenerateWorld_MissingFields(t *testing.T) {
	env := newTestEnv(false)

	bodies := []map[string]string{
		{"culture": "nomadic", "tone": "mystical"},
		{"biome": "desert", "tone": "mystical"},
		{"biome": "desert", "culture": "nomadic"},
		{},
	}
	for _, body := range bodies {
		rec := env.do(t, http.MethodPost, "/generate-world", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", body, rec.Code)
		}
	}
	if env.worlds.Len() != 0 {
		t.Errorf("expected no worlds stored, got %d", env.worlds.Len())
	}
}

func TestGenerateWorld_FallbackOnUpstreamFailure(t *testing.T) {
	env := newTestEnv(false)
	env.model.reply = ""
	env.model.err = errors.New("model down")

	rec := env.do(t, http.MethodPost, "/generate-world",
		map[string]string{"biome": "desert", "culture": "nomadic", "tone": "mystical"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 under fail-open policy, got %d", rec.Code)
	}
	world := decodeBody(t, rec)["world"].(map[string]any)
	if world["reasoning"] != "" {
		t.Errorf("expected empty reasoning in fallback, got %v", world["reasoning"])
	}
	if world["biome"] != "desert" || world["culture"] != "nomadic" || world["tone"] != "mystical" {
		t.Error("expected inputs echoed in fallback world")
	}
}

func TestGenerateWorld_FailClosedSurfaces502(t *testing.T) {
	env := newTestEnv(true)
	env.model.err = errors.New("model down")

	rec := env.do(t, http.MethodPost, "/generate-world",
		map[string]string{"biome": "b", "culture": "c", "tone": "t"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 under fail-closed policy, got %d", rec.Code)
	}
	if env.worlds.Len() != 0 {
		t.Errorf("expected no worlds stored, got %d", env.worlds.Len())
	}
}

func TestGenerateWorld_EmbeddingFailureDegrades(t *testing.T) {
	env := newTestEnv(false)
	env.embeds.vec = nil
	env.embeds.err = errors.New("embed down")

	rec := env.do(t, http.MethodPost, "/generate-world",
		map[string]string{"biome": "b", "culture": "c", "tone": "t"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	world := decodeBody(t, rec)["world"].(map[string]any)
	if world["embedding"] != nil {
		t.Errorf("expected null embedding, got %v", world["embedding"])
	}
}

func TestListWorlds(t *testing.T) {
	env := newTestEnv(false)

	rec := env.do(t, http.MethodGet, "/worlds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	worlds, ok := decodeBody(t, rec)["worlds"].([]any)
	if !ok {
		t.Fatalf("expected worlds array, got %s", rec.Body.String())
	}
	if len(worlds) != 0 {
		t.Errorf("expected empty list, got %d", len(worlds))
	}

	env.worlds.Append(store.World{Summary: "first"})
	env.worlds.Append(store.World{Summary: "second"})

	rec = env.do(t, http.MethodGet, "/worlds", nil)
	worlds = decodeBody(t, rec)["worlds"].([]any)
	if len(worlds) != 2 {
		t.Fatalf("expected 2 worlds, got %d", len(worlds))
	}
	if worlds[0].(map[string]any)["summary"] != "first" {
		t.Error("expected insertion order preserved")
	}
}

func TestUpdateWorld(t *testing.T) {
	env := newTestEnv(false)
	created := env.worlds.Append(store.World{Summary: "old", Biome: "desert"})

	rec := env.do(t, http.MethodPut, "/update-world/1", map[string]string{"summary": "new"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	before := body["before"].(map[string]any)
	after := body["after"].(map[string]any)
	if before["summary"] != "old" {
		t.Errorf("expected before.summary=old, got %v", before["summary"])
	}
	if after["summary"] != "new" {
		t.Errorf("expected after.summary=new, got %v", after["summary"])
	}
	if after["biome"] != "desert" {
		t.Error("expected unpatched field unchanged")
	}

	stored, _ := env.worlds.Get(created.ID)
	if stored.Summary != "new" {
		t.Error("expected update persisted")
	}
}

func TestUpdateWorld_NotFound(t *testing.T) {
	env := newTestEnv(false)
	env.worlds.Append(store.World{Summary: "only"})

	rec := env.do(t, http.MethodPut, "/update-world/99", map[string]string{"summary": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	got := env.worlds.List()
	if len(got) != 1 || got[0].Summary != "only" {
		t.Error("expected store unchanged after 404")
	}
}

func TestUpdateWorld_BadID(t *testing.T) {
	env := newTestEnv(false)
	rec := env.do(t, http.MethodPut, "/update-world/abc", map[string]string{"summary": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestSimilarDot_RanksAndTruncates(t *testing.T) {
	env := newTestEnv(false)
	env.worlds.Append(store.World{Summary: "east", Tone: "mystical", Embedding: []float32{1, 0}})
	env.worlds.Append(store.World{Summary: "north", Tone: "grimdark", Embedding: []float32{0, 1}})
	env.embeds.vec = []float32{1, 0}

	rec := env.do(t, http.MethodPost, "/similar-worlds-dot",
		map[string]any{"query": "eastern sands", "topN": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	matches := decodeBody(t, rec)["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	m := matches[0].(map[string]any)
	if m["summary"] != "east" {
		t.Errorf("expected best match 'east', got %v", m["summary"])
	}
	if m["score"].(float64) != 1 {
		t.Errorf("expected score=1, got %v", m["score"])
	}
}

func TestSimilarDot_SkipsWorldsWithoutEmbedding(t *testing.T) {
	env := newTestEnv(false)
	env.worlds.Append(store.World{Summary: "blind"})
	env.worlds.Append(store.World{Summary: "sighted", Embedding: []float32{1, 0}})
	env.embeds.vec = []float32{1, 0}

	rec := env.do(t, http.MethodPost, "/similar-worlds-dot", map[string]any{"query": "q"})
	matches := decodeBody(t, rec)["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].(map[string]any)["summary"] != "sighted" {
		t.Error("expected only embedded worlds to participate")
	}
}

func TestSimilarDot_MissingQuery(t *testing.T) {
	env := newTestEnv(false)
	rec := env.do(t, http.MethodPost, "/similar-worlds-dot", map[string]any{"topN": 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSimilarDot_EmbeddingFailure(t *testing.T) {
	env := newTestEnv(false)
	env.embeds.vec = nil
	env.embeds.err = errors.New("embed down")

	rec := env.do(t, http.MethodPost, "/similar-worlds-dot", map[string]any{"query": "q"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when query embedding fails, got %d", rec.Code)
	}
}

func TestSimilarCosine_UsesSimilarityKey(t *testing.T) {
	env := newTestEnv(false)
	env.worlds.Append(store.World{Summary: "w", Embedding: []float32{2, 0}})
	env.embeds.vec = []float32{1, 0}

	rec := env.do(t, http.MethodPost, "/similar-worlds-cosine", map[string]any{"query": "q"})
	matches := decodeBody(t, rec)["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0].(map[string]any)
	if _, ok := m["similarity"]; !ok {
		t.Errorf("expected similarity key, got %v", m)
	}
}

func TestSimilarL2_AscendingOrder(t *testing.T) {
	env := newTestEnv(false)
	env.worlds.Append(store.World{Summary: "far", Embedding: []float32{10, 0}})
	env.worlds.Append(store.World{Summary: "near", Embedding: []float32{1, 0}})
	env.embeds.vec = []float32{0, 0}

	rec := env.do(t, http.MethodPost, "/similar-worlds-l2", map[string]any{"query": "q"})
	matches := decodeBody(t, rec)["matches"].([]any)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].(map[string]any)["summary"] != "near" {
		t.Error("expected nearest world ranked first for L2")
	}
	if _, ok := matches[0].(map[string]any)["distance"]; !ok {
		t.Error("expected distance key for L2 matches")
	}
}

func TestFunctionCall_GeneratesWorld(t *testing.T) {
	env := newTestEnv(false)
	env.caller.args = &gemini.WorldArgs{Biome: "desert", Culture: "nomadic", Tone: "mystical"}

	rec := env.do(t, http.MethodPost, "/ai-function-call",
		map[string]string{"message": "make me a desert world"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	fc := body["functionCall"].(map[string]any)
	if fc["name"] != "generateWorld" {
		t.Errorf("expected functionCall.name=generateWorld, got %v", fc["name"])
	}
	world := body["world"].(map[string]any)
	if world["summary"] != "S" {
		t.Errorf("expected generated world in response, got %v", world)
	}
	if env.worlds.Len() != 1 {
		t.Errorf("expected 1 stored world, got %d", env.worlds.Len())
	}
}

func TestFunctionCall_NoValidCall(t *testing.T) {
	env := newTestEnv(false)
	env.caller.err = errors.New("model returned prose")

	rec := env.do(t, http.MethodPost, "/ai-function-call", map[string]string{"message": "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestFunctionCall_MissingMessage(t *testing.T) {
	env := newTestEnv(false)
	rec := env.do(t, http.MethodPost, "/ai-function-call", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(false)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(false)
	rec := env.do(t, http.MethodGet, "/stats/llm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := decodeBody(t, rec)["stats"]; !ok {
		t.Error("expected stats object in response")
	}
}
