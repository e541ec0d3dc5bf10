// Package worldgen turns model replies into world drafts: it builds the
// prompt, calls the generation model, and parses the reply, falling back to
// a canned world when the upstream fails and the policy is fail-open.
package worldgen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/worldforge/internal/prompt"
)

// TextGenerator produces raw model text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Draft is a generated world body before it is stored and embedded.
type Draft struct {
	Reasoning string
	Summary   string
	Biome     string
	Culture   string
	Tone      string
	Myth      string
}

// EmbeddingInput is the text embedded to index this draft for similarity
// search.
func (d Draft) EmbeddingInput() string {
	return fmt.Sprintf("%s %s %s %s", d.Summary, d.Biome, d.Culture, d.Myth)
}

const (
	fallbackSummary = "A mystical desert world shaped by nomadic wisdom."
	fallbackMyth    = "The Whispering Wind guides lost souls to hidden sanctuaries."
)

func fallbackDraft(biome, culture, tone string) Draft {
	return Draft{
		Summary: fallbackSummary,
		Biome:   biome,
		Culture: culture,
		Tone:    tone,
		Myth:    fallbackMyth,
	}
}

// Generator orchestrates prompt building, the generation call, and reply
// parsing.
type Generator struct {
	gen        TextGenerator
	log        *slog.Logger
	failClosed bool
}

// NewGenerator wires a generator. With failClosed false (the default
// policy), upstream and parse failures are logged and masked by the
// fallback draft; with failClosed true they are returned to the caller.
func NewGenerator(gen TextGenerator, log *slog.Logger, failClosed bool) *Generator {
	return &Generator{gen: gen, log: log, failClosed: failClosed}
}

// Generate produces a world draft for the given inputs.
func (g *Generator) Generate(ctx context.Context, biome, culture, tone string) (Draft, error) {
	draft := fallbackDraft(biome, culture, tone)

	text, err := g.gen.GenerateText(ctx, prompt.BuildWorldPrompt(biome, culture, tone))
	if err != nil {
		g.log.Error("world generation failed", "error", err)
		if g.failClosed {
			return Draft{}, fmt.Errorf("generate world: %w", err)
		}
		return draft, nil
	}

	parsed, err := ParseReply(text)
	if err != nil {
		g.log.Warn("unparseable model reply", "error", err)
		if g.failClosed {
			return Draft{}, fmt.Errorf("parse world reply: %w", err)
		}
		return draft, nil
	}

	draft.Reasoning = parsed.Reasoning
	applyFields(&draft, parsed.Fields)
	return draft, nil
}

// applyFields overrides the known draft fields with string values present
// in the parsed payload. Unknown keys and non-string values are ignored —
// the payload is not otherwise validated.
func applyFields(d *Draft, fields map[string]any) {
	if s, ok := fields["summary"].(string); ok {
		d.Summary = s
	}
	if s, ok := fields["biome"].(string); ok {
		d.Biome = s
	}
	if s, ok := fields["culture"].(string); ok {
		d.Culture = s
	}
	if s, ok := fields["tone"].(string); ok {
		d.Tone = s
	}
	if s, ok := fields["myth"].(string); ok {
		d.Myth = s
	}
}
