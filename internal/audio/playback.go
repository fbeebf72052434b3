package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
)

// Sink accepts reformatted PCM frames for playback. Write failures are
// logged but never terminate the process (§4.6).
type Sink interface {
	Write(pcm []byte)
	Close() error
}

// DeviceSink plays PCM through a real speaker device via malgo.
type DeviceSink struct {
	logger *slog.Logger
	format Format

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	mu  sync.Mutex
	buf []byte
}

// NewDeviceSink opens the system's default playback device at the given
// format. Width must be 4 (S32) in this implementation.
func NewDeviceSink(logger *slog.Logger, format Format) (*DeviceSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if format.Width != 4 {
		return nil, fmt.Errorf("audio: device sink only supports 32-bit samples, got width=%d", format.Width)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init playback context: %w", err)
	}

	s := &DeviceSink{logger: logger, format: format, mctx: mctx}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS32
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			s.fill(pOutput)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("audio: init playback device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("audio: start playback device: %w", err)
	}

	return s, nil
}

func (s *DeviceSink) fill(pOutput []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(pOutput, s.buf)
	s.buf = s.buf[n:]
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

func (s *DeviceSink) Write(pcm []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, pcm...)
	s.mu.Unlock()
}

func (s *DeviceSink) Close() error {
	if s.device != nil {
		s.device.Uninit()
	}
	if s.mctx != nil {
		return s.mctx.Uninit()
	}
	return nil
}

// FileSink accumulates played PCM into a WAV file for inspection, used in
// mock mode when no playback device is available.
type FileSink struct {
	path   string
	format Format

	mu  sync.Mutex
	pcm bytes.Buffer
}

// NewFileSink prepares a mock sink that writes path on Close.
func NewFileSink(path string, format Format) *FileSink {
	return &FileSink{path: path, format: format}
}

func (s *FileSink) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm.Write(pcm)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pcm.Len() == 0 {
		return nil
	}
	return os.WriteFile(s.path, WavBytes(s.pcm.Bytes(), s.format.SampleRate, s.format.Channels, s.format.Width), 0o644)
}
