package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Gemini
	GeminiAPIKey string
	GenModel     string
	EmbedModel   string

	// External call timeouts
	GenTimeout   time.Duration
	EmbedTimeout time.Duration

	// Embedding retry policy
	EmbedRetries  int
	EmbedThrottle time.Duration

	// Generation failure policy: fail-open returns the fallback world,
	// fail-closed surfaces the upstream error to the client.
	GenerationFailClosed bool

	// Similarity search
	DefaultTopN int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "3000"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GenModel:     envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		EmbedModel:   envOr("EMBED_MODEL", "text-embedding-004"),

		GenTimeout:   envDuration("GEN_TIMEOUT", 60*time.Second),
		EmbedTimeout: envDuration("EMBED_TIMEOUT", 30*time.Second),

		EmbedRetries:  envInt("EMBED_RETRIES", 3),
		EmbedThrottle: envDuration("EMBED_THROTTLE", 1*time.Second),

		GenerationFailClosed: envBool("GENERATION_FAIL_CLOSED", false),

		DefaultTopN: envInt("DEFAULT_TOP_N", 3),
	}

	if cfg.GenTimeout <= 0 {
		cfg.GenTimeout = 60 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	if cfg.EmbedRetries < 0 {
		cfg.EmbedRetries = 3
	}
	if cfg.EmbedThrottle < 0 {
		cfg.EmbedThrottle = 1 * time.Second
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 3
	}

	return cfg
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.GenModel == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("EMBED_MODEL must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
