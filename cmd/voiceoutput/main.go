package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/voiceoutput"
)

func main() {
	config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.LoadVoiceOutput()

	device := audio.Format{
		SampleRate: cfg.DeviceSampleRate,
		Channels:   cfg.DeviceChannels,
		Width:      cfg.DeviceSampleWidth,
	}
	input := audio.Format{
		SampleRate: cfg.DeviceSampleRate,
		Channels:   cfg.InputChannels,
		Width:      cfg.DeviceSampleWidth,
	}

	var sink audio.Sink
	var err error
	if cfg.MockMode {
		sink = audio.NewFileSink("voiceoutput.wav", device)
	} else {
		sink, err = audio.NewDeviceSink(logger, device)
	}
	if err != nil {
		logger.Error("voiceoutput: failed to open playback sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	svc := voiceoutput.NewService(logger, device, input, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx, cfg.BusBindAddr) }()

	logger.Info("voiceoutput: running", "bind_addr", cfg.BusBindAddr, "mock", cfg.MockMode)

	select {
	case <-sig:
		logger.Info("voiceoutput: shutting down")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error("voiceoutput: service exited", "error", err)
			os.Exit(1)
		}
	}
}
