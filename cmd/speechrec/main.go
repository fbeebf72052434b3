package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/speechrec"
)

func main() {
	config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.LoadSpeechRec()

	if cfg.GroqAPIKey == "" {
		logger.Error("speechrec: GROQ_API_KEY must be set")
		os.Exit(1)
	}
	asr := speechrec.NewGroqASR(cfg.GroqAPIKey, cfg.GroqModel, cfg.ExpectedSampleRate, logger)

	svc := speechrec.NewService(cfg, logger, asr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	logger.Info("speechrec: running", "control_addr", cfg.ControlAddr, "audio_addr", cfg.AudioAddr, "text_addr", cfg.TextAddr)

	select {
	case <-sig:
		logger.Info("speechrec: shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("speechrec: service exited", "error", err)
			os.Exit(1)
		}
	}
}
