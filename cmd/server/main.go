package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/worldforge/internal/api"
	"github.com/dgallion1/worldforge/internal/config"
	"github.com/dgallion1/worldforge/internal/embed"
	"github.com/dgallion1/worldforge/internal/gemini"
	"github.com/dgallion1/worldforge/internal/store"
	"github.com/dgallion1/worldforge/internal/worldgen"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load .env file", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.EmbedModel, cfg.GenTimeout, cfg.EmbedTimeout)
	if err != nil {
		log.Error("gemini client init failed", "error", err)
		os.Exit(1)
	}

	worlds := store.New()
	generator := worldgen.NewGenerator(client, log, cfg.GenerationFailClosed)
	embedder := embed.NewClient(client, log, cfg.EmbedRetries, cfg.EmbedThrottle)

	// Initialize HTTP server.
	srv := api.NewServer(generator, embedder, worlds, client, client.Stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
	}()

	log.Info("starting worldforge",
		"port", cfg.Port,
		"gen_model", cfg.GenModel,
		"embed_model", cfg.EmbedModel,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
