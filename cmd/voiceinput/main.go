package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/voiceinput"
)

func main() {
	config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.LoadVoiceInput()

	var capture audio.Capture
	var err error
	if cfg.MockMode {
		if cfg.MockWavPath == "" {
			logger.Error("voiceinput: VOICE_INPUT_MOCK is set but VOICE_INPUT_MOCK_WAV is empty")
			os.Exit(1)
		}
		capture, err = audio.NewWavCapture(cfg.MockWavPath, cfg.ChunkFrames)
	} else {
		capture, err = audio.NewDeviceCapture(audio.Format{
			SampleRate: cfg.DeviceSampleRate,
			Channels:   cfg.DeviceChannels,
			Width:      cfg.DeviceSampleWidth,
		})
	}
	if err != nil {
		logger.Error("voiceinput: failed to open capture source", "error", err)
		os.Exit(1)
	}
	defer capture.Close()

	svc, err := voiceinput.NewService(cfg, logger, capture)
	if err != nil {
		logger.Error("voiceinput: failed to build service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	logger.Info("voiceinput: running", "speech_rec_addr", cfg.SpeechRecAddr, "mock", cfg.MockMode)

	select {
	case <-sig:
		logger.Info("voiceinput: shutting down")
		cancel()
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("voiceinput: capture exited", "error", err)
			os.Exit(1)
		}
	}
}
