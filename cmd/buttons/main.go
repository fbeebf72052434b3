package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lokutor-ai/voxfabric/internal/buttons"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

func main() {
	config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.LoadButtons()

	if !cfg.MockMode {
		logger.Error("buttons: no hardware GPIO source wired in this build, set BUTTONS_MOCK=true")
		os.Exit(1)
	}
	source := buttons.NewMockSource()

	publisher := bus.NewPublisher(logger)
	svc := buttons.NewService(source, logger, cfg.HoldTime, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx, cfg.BusBindAddr) }()

	logger.Info("buttons: running", "bind_addr", cfg.BusBindAddr, "mock", cfg.MockMode)

	select {
	case <-sig:
		logger.Info("buttons: shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("buttons: service exited", "error", err)
			os.Exit(1)
		}
	}
}
