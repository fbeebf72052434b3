package audio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
)

// Capture is a source of raw PCM frames at a fixed device format. Voice-Input
// wraps one with the VAD gate; the hardware audio I/O itself is external
// per spec (mic device vs. mock WAV file).
type Capture interface {
	Format() Format
	// Start begins delivering frames to onFrames and blocks until ctx is
	// cancelled or an unrecoverable device error occurs.
	Start(ctx context.Context, onFrames func(pcm []byte)) error
	Close() error
}

// DeviceCapture opens a real microphone input device via malgo.
type DeviceCapture struct {
	format Format

	mctx   *malgo.AllocatedContext
	device *malgo.Device
}

// NewDeviceCapture opens the system's default capture device at the given
// format. Width must be 2 (S16) in this implementation, matching the
// reference malgo configuration.
func NewDeviceCapture(format Format) (*DeviceCapture, error) {
	if format.Width != 2 {
		return nil, fmt.Errorf("audio: device capture only supports 16-bit samples, got width=%d", format.Width)
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init capture context: %w", err)
	}
	return &DeviceCapture{format: format, mctx: mctx}, nil
}

func (c *DeviceCapture) Format() Format { return c.format }

func (c *DeviceCapture) Start(ctx context.Context, onFrames func(pcm []byte)) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(c.format.Channels)
	deviceConfig.SampleRate = uint32(c.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			if len(pInput) > 0 {
				onFrames(pInput)
			}
		},
	}

	device, err := malgo.InitDevice(c.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("audio: init capture device: %w", err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *DeviceCapture) Close() error {
	if c.device != nil {
		c.device.Uninit()
	}
	if c.mctx != nil {
		return c.mctx.Uninit()
	}
	return nil
}
