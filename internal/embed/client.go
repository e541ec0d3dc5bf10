// Package embed wraps the embedding endpoint with a fixed pre-call throttle
// and bounded retry on rate limiting.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/worldforge/internal/gemini"
)

// Provider is the upstream embedding endpoint.
type Provider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Backoff returns the wait before retrying attempt n (0-indexed):
// 1s, 2s, 4s, ... The schedule is part of the retry contract, so there is
// no jitter.
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// DefaultRetries is the number of additional attempts after the first.
const DefaultRetries = 3

// Client retries rate-limited embedding calls with exponential backoff.
// Any other failure is terminal on the first occurrence.
type Client struct {
	provider Provider
	log      *slog.Logger
	retries  int
	throttle time.Duration

	// backoff is swappable in tests.
	backoff func(attempt int) time.Duration
}

// NewClient wires an embedding client. retries is the number of additional
// attempts after the first; throttle is a fixed delay before each Embed call
// to pace requests to the endpoint.
func NewClient(provider Provider, log *slog.Logger, retries int, throttle time.Duration) *Client {
	if retries < 0 {
		retries = DefaultRetries
	}
	return &Client{
		provider: provider,
		log:      log,
		retries:  retries,
		throttle: throttle,
		backoff:  Backoff,
	}
}

// Embed returns the embedding vector for text. A nil slice with an error
// means the embedding is unavailable; callers decide whether that fails
// their request.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.throttle > 0 {
		if err := sleep(ctx, c.throttle); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		vec, err := c.provider.EmbedText(ctx, text)
		if err == nil {
			if len(vec) == 0 {
				lastErr = fmt.Errorf("provider returned empty vector")
				break
			}
			return vec, nil
		}
		lastErr = err
		if !gemini.IsRateLimited(err) || attempt == c.retries {
			break
		}
		wait := c.backoff(attempt)
		c.log.Warn("embedding rate limited, backing off",
			"attempt", attempt,
			"wait", wait,
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.log.Error("embedding failed", "error", lastErr)
	return nil, fmt.Errorf("embed text: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
