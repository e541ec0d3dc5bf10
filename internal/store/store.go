// Package store keeps generated worlds in process memory. There is no
// durable storage: all worlds are lost when the process exits.
package store

import "sync"

// World is a generated fictional setting plus its optional embedding.
type World struct {
	ID        int       `json:"id"`
	Reasoning string    `json:"reasoning"`
	Summary   string    `json:"summary"`
	Biome     string    `json:"biome"`
	Culture   string    `json:"culture"`
	Tone      string    `json:"tone"`
	Myth      string    `json:"myth"`
	Embedding []float32 `json:"embedding"`
}

// Patch is a partial update. Empty fields are left untouched; ID and
// Embedding are not patchable.
type Patch struct {
	Summary string `json:"summary"`
	Biome   string `json:"biome"`
	Culture string `json:"culture"`
	Tone    string `json:"tone"`
	Myth    string `json:"myth"`
}

// Store is a mutex-guarded, append-only collection of worlds. IDs are
// allocated from a serialized counter, so concurrent appends never collide,
// and listing preserves insertion order.
type Store struct {
	mu     sync.Mutex
	order  []int
	worlds map[int]World
	nextID int
}

func New() *Store {
	return &Store{worlds: make(map[int]World)}
}

// Append assigns the next id to w, stores it, and returns the stored copy.
func (s *Store) Append(w World) World {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w.ID = s.nextID
	s.worlds[w.ID] = w
	s.order = append(s.order, w.ID)
	return w
}

// List returns all worlds in insertion order. The returned slice is a copy.
func (s *Store) List() []World {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]World, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.worlds[id])
	}
	return out
}

// Get returns the world with the given id.
func (s *Store) Get(id int) (World, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.worlds[id]
	return w, ok
}

// Update applies the non-empty fields of p to the world with the given id
// and returns the world before and after the change. ok is false when the
// id is unknown, in which case the store is unchanged.
func (s *Store) Update(id int, p Patch) (before, after World, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, found := s.worlds[id]
	if !found {
		return World{}, World{}, false
	}
	before = w
	if p.Summary != "" {
		w.Summary = p.Summary
	}
	if p.Biome != "" {
		w.Biome = p.Biome
	}
	if p.Culture != "" {
		w.Culture = p.Culture
	}
	if p.Tone != "" {
		w.Tone = p.Tone
	}
	if p.Myth != "" {
		w.Myth = p.Myth
	}
	s.worlds[id] = w
	return before, w, true
}

// Len returns the number of stored worlds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
