package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dhvani-ai/dhvani/internal/config"
	"github.com/dhvani-ai/dhvani/internal/httpapi"
	"github.com/dhvani-ai/dhvani/internal/observability"
	"github.com/dhvani-ai/dhvani/internal/relay"
	"github.com/dhvani-ai/dhvani/internal/session"
)

// buildSynthesizer resolves SYNTH_PROVIDER (validated by config.Load) to a
// concrete backend. "auto" uses the real endpoint only when the rest of the
// pipeline is real too; an unconfigured deployment stays fully mock instead
// of sending placeholder text to a public service.
func buildSynthesizer(cfg config.Config) (relay.Synthesizer, string) {
	mode := strings.ToLower(strings.TrimSpace(cfg.SynthProvider))
	if mode == "" || mode == "auto" {
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			mode = "mock"
		} else {
			mode = "edge"
		}
	}
	if mode == "mock" {
		return relay.NewMockSynthesizer(), "mock"
	}
	return relay.NewEdgeSynthesizer(relay.EdgeConfig{
		WSBaseURL:    cfg.EdgeWSBaseURL,
		Voice:        cfg.EdgeVoice,
		Rate:         cfg.EdgeRate,
		Volume:       cfg.EdgeVolume,
		OutputFormat: cfg.EdgeOutputFmt,
		CallLimit:    cfg.SynthesisTimeout,
	}), "edge"
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var (
		transcriber relay.Transcriber
		chat        relay.ChatStreamer
	)
	if strings.TrimSpace(cfg.GroqAPIKey) != "" {
		groq := relay.NewGroqProvider(relay.GroqSettings{
			APIKey:          cfg.GroqAPIKey,
			BaseURL:         cfg.GroqBaseURL,
			STTModel:        cfg.GroqSTTModel,
			ChatModel:       cfg.GroqChatModel,
			SourceLanguage:  cfg.SourceLanguage,
			Temperature:     float32(cfg.ChatTemperature),
			MaxTokens:       cfg.ChatMaxTokens,
			TranscribeLimit: cfg.TranscribeTimeout,
			ChatLimit:       cfg.ChatTimeout,
		})
		transcriber = groq
		chat = groq
		log.Printf("speech provider: groq (%s / %s)", cfg.GroqSTTModel, cfg.GroqChatModel)
	} else {
		transcriber = relay.NewMockTranscriber()
		chat = relay.NewMockChatStreamer()
		log.Printf("speech provider: mock (GROQ_API_KEY not set)")
	}

	synth, synthMode := buildSynthesizer(cfg)
	if synthMode == "edge" {
		log.Printf("synthesis provider: edge (%s)", cfg.EdgeVoice)
	} else {
		log.Printf("synthesis provider: %s", synthMode)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := relay.NewOrchestrator(
		sessions,
		transcriber,
		chat,
		synth,
		metrics,
		relay.NewLogSink(metrics),
		relay.Settings{
			SystemPrompt:    cfg.SystemPrompt,
			HistoryCap:      cfg.HistoryCap,
			SampleRate:      cfg.SampleRate,
			FlushFloorBytes: cfg.FlushFloorBytes,
			MaxBufferBytes:  cfg.MaxBufferBytes,
		},
	)

	api := httpapi.New(cfg, sessions, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
