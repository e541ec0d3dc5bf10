// Package gemini wraps the Google generative AI SDK behind the narrow
// surface the rest of the service needs: text generation, text embedding,
// and the generateWorld function-calling flow.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client calls the Gemini API for generation and embedding.
type Client struct {
	genai      *genai.Client
	genModel   string
	embedModel string

	genTimeout   time.Duration
	embedTimeout time.Duration

	// Stats records call latencies for the /stats/llm endpoint.
	Stats *Stats
}

func NewClient(ctx context.Context, apiKey, genModel, embedModel string, genTimeout, embedTimeout time.Duration) (*Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		genai:        c,
		genModel:     genModel,
		embedModel:   embedModel,
		genTimeout:   genTimeout,
		embedTimeout: embedTimeout,
		Stats:        NewStats(time.Hour),
	}, nil
}

// GenModel returns the configured generation model name.
func (c *Client) GenModel() string { return c.genModel }

// EmbedModel returns the configured embedding model name.
func (c *Client) EmbedModel() string { return c.embedModel }

// GenerateText sends prompt to the generation model and returns the
// concatenated text parts of the first candidate.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	start := time.Now()
	model := c.genai.GenerativeModel(c.genModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	c.Stats.Record("generate", time.Since(start).Milliseconds())
	if err != nil {
		return "", wrapAPIError("generate content", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from %s", c.genModel)
	}
	return text, nil
}

// EmbedText returns the embedding vector for text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	start := time.Now()
	em := c.genai.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	c.Stats.Record("embed", time.Since(start).Milliseconds())
	if err != nil {
		return nil, wrapAPIError("embed content", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding values from %s", c.embedModel)
	}
	return res.Embedding.Values, nil
}

// WorldArgs are the arguments of a generateWorld function call.
type WorldArgs struct {
	Biome   string
	Culture string
	Tone    string
}

// WorldFunctionCall asks the model to translate a free-text message into a
// generateWorld call and returns its arguments.
func (c *Client) WorldFunctionCall(ctx context.Context, message string) (*WorldArgs, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	model := c.genai.GenerativeModel(c.genModel)
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        "generateWorld",
			Description: "Generate a fictional world",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"biome":   {Type: genai.TypeString},
					"culture": {Type: genai.TypeString},
					"tone":    {Type: genai.TypeString},
				},
				Required: []string{"biome", "culture", "tone"},
			},
		}},
	}}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(message))
	c.Stats.Record("function_call", time.Since(start).Milliseconds())
	if err != nil {
		return nil, wrapAPIError("function call", err)
	}

	fc := firstFunctionCall(resp)
	if fc == nil || fc.Name != "generateWorld" {
		return nil, fmt.Errorf("no generateWorld call in response")
	}
	args := &WorldArgs{
		Biome:   stringArg(fc.Args, "biome"),
		Culture: stringArg(fc.Args, "culture"),
		Tone:    stringArg(fc.Args, "tone"),
	}
	if args.Biome == "" || args.Culture == "" || args.Tone == "" {
		return nil, fmt.Errorf("generateWorld call missing required arguments")
	}
	return args, nil
}

// Close releases the underlying SDK client.
func (c *Client) Close() error {
	return c.genai.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text string
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text += string(txt)
			}
		}
	}
	return text
}

func firstFunctionCall(resp *genai.GenerateContentResponse) *genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok {
			return &fc
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// RateLimitError marks a 429 from the API so callers can retry with backoff.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is (or wraps) a rate-limit error.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

func wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return &RateLimitError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}
