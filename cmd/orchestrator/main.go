package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/orchestrator"
	"github.com/lokutor-ai/voxfabric/internal/sessionlog"
)

func main() {
	config.Load()
	slogLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger := orchestrator.NewSlogLogger(slogLogger)

	cfg := config.LoadOrchestrator()

	logWriter, err := sessionlog.Open(cfg.SessionLogPath, slogLogger)
	if err != nil {
		slogLogger.Error("orchestrator: failed to open session log", "error", err)
		os.Exit(1)
	}
	defer logWriter.Close()

	onFlush := func(turns []orchestrator.Turn) {
		entries := make([]sessionlog.TurnEntry, len(turns))
		for i, t := range turns {
			entries[i] = sessionlog.TurnEntry{Role: t.Role, Content: t.Content}
		}
		logWriter.Append(entries)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var engine orchestrator.Engine
	switch cfg.EngineKind {
	case "cloud":
		engine = orchestrator.NewCloudEngine(logger, cfg.TTSURL, cfg.TTSAPIKey, cfg.VoiceID, cfg.TenantID, httpClient)
	case "local":
		fallthrough
	default:
		engine = orchestrator.NewLocalEngine(logger, cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.SystemPrompt, cfg.TTSURL, cfg.TTSAPIKey, cfg.VoiceID, httpClient)
	}

	svc := orchestrator.NewService(cfg, logger, engine, onFlush)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() { svc.Run(ctx); close(done) }()

	slogLogger.Info("orchestrator: running", "engine", cfg.EngineKind, "voice_output_bus_addr", cfg.VoiceOutputBusAddr)

	<-sig
	slogLogger.Info("orchestrator: shutting down")
	cancel()
	<-done

	if closer, ok := engine.(interface{ Close() error }); ok {
		closer.Close()
	}
}
