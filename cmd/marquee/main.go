package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/marquee/internal/anthropic"
	"github.com/MikeSquared-Agency/marquee/internal/api"
	"github.com/MikeSquared-Agency/marquee/internal/candidates"
	"github.com/MikeSquared-Agency/marquee/internal/chat"
	"github.com/MikeSquared-Agency/marquee/internal/config"
	"github.com/MikeSquared-Agency/marquee/internal/curator"
	"github.com/MikeSquared-Agency/marquee/internal/hermes"
	"github.com/MikeSquared-Agency/marquee/internal/kobis"
	"github.com/MikeSquared-Agency/marquee/internal/openai"
	"github.com/MikeSquared-Agency/marquee/internal/session"
	"github.com/MikeSquared-Agency/marquee/internal/tmdb"
	"github.com/MikeSquared-Agency/marquee/internal/turn"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("marquee starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm := newGenerator(cfg)

	// KOBIS catalog
	if cfg.KobisAPIKey == "" {
		slog.Warn("KOBIS_API_KEY not set, catalog lookups disabled")
	}
	catalog := kobis.NewClient(cfg.KobisAPIKey, cfg.LookupTimeout, cfg.KobisRatePerSec, slog.Default())
	catalog.SetBaseURL(cfg.KobisBaseURL)

	// TMDB posters (optional)
	if cfg.TMDBAPIKey == "" {
		slog.Warn("TMDB_API_KEY not set, posters disabled")
	}
	posters := tmdb.NewClient(cfg.TMDBAPIKey)
	posters.SetBaseURL(cfg.TMDBBaseURL)

	mode, err := turn.ParseMode(cfg.TurnMode)
	if err != nil {
		slog.Warn("falling back to sourced turn mode", "error", err)
	}

	roster := curator.NewRoster(llm, catalog, slog.Default())
	agents := make([]turn.Agent, 0, len(roster))
	for _, c := range roster {
		agents = append(agents, c)
	}
	coord := turn.NewCoordinator(agents, candidates.NewSourcer(catalog, slog.Default()), mode, slog.Default())

	// NATS/Hermes (optional)
	var events chat.Publisher
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without events")
	}

	sessions := session.NewStore(cfg.SessionTTL, cfg.MaxSessions, slog.Default())
	go sessions.Run(ctx, time.Minute)

	svc := chat.NewService(sessions, coord, posters, events, slog.Default())

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectTurnRequested, svc.HandleTurnRequested); err != nil {
			slog.Error("failed to subscribe to turn requests", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	var natsConnected func() bool
	if hermesClient != nil {
		natsConnected = hermesClient.Connected
	}
	limits := api.Limits{CreatesPerMinute: cfg.CreateRateLimit, TurnsPerMinute: cfg.TurnRateLimit}
	srv := api.NewServer(cfg.Port, cfg.APIToken, limits, string(mode), natsConnected, svc, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectAgentRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"mode":      string(mode),
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("marquee ready", "port", cfg.Port, "turn_mode", mode, "llm_provider", cfg.LLMProvider)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("marquee stopped")
}

// newGenerator picks the LLM backend. A missing key is not fatal: personas
// fall back to canned replies until one is configured.
func newGenerator(cfg config.Config) curator.Generator {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			slog.Warn("ANTHROPIC_API_KEY not set, replies will use fallbacks")
		}
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GenerationTimeout)
	default:
		if cfg.OpenAIAPIKey == "" {
			slog.Warn("OPENAI_API_KEY not set, replies will use fallbacks")
		}
		c := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.GenerationTimeout)
		c.SetBaseURL(cfg.OpenAIBaseURL)
		slog.Info("openai client ready", "model", cfg.OpenAIModel)
		return c
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
