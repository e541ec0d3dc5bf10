// Package prompt builds the chain-of-thought worldbuilding prompt sent to
// the generation model.
package prompt

import (
	"fmt"
	"strings"
)

const worldTemplate = `You are an AI worldbuilder. Your task is to generate a fictional world using step-by-step reasoning.

Step 1: Describe the biome - its climate, terrain, and flora.
Step 2: Based on the biome, infer the types of civilizations that could emerge.
Step 3: Describe the dominant culture - values, rituals, and architecture.
Step 4: Reflect the tone (%s) in the world's atmosphere and conflicts.
Step 5: Create a myth or legend that embodies the world's essence.

User Input:
Biome: %s
Culture: %s
Tone: %s

Instructions:
%s

First, reason through each step in natural language.
Then, return the final result in compact JSON format.
Do not skip the reasoning. Do not return only JSON.
`

// toneInstructions maps recognized tones to an extra stylistic instruction.
// Unrecognized tones get no instruction.
var toneInstructions = map[string]string{
	"mystical": "Use poetic language and evoke ancient mysteries.",
	"grimdark": "Emphasize brutality, decay, and moral ambiguity.",
	"hopeful":  "Highlight resilience, rebirth, and unity.",
}

// BuildWorldPrompt renders the five-step reasoning prompt for the given
// inputs. It is pure: identical inputs produce byte-identical output.
func BuildWorldPrompt(biome, culture, tone string) string {
	instruction := toneInstructions[strings.ToLower(tone)]
	return fmt.Sprintf(worldTemplate, tone, biome, culture, tone, instruction)
}
