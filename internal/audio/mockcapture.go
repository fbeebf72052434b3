package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavCapture reads an entire WAV file into memory once and replays it in
// fixed-size chunks at real-time pace (sleeping `chunk_frames / rate`
// between chunks), looping on EOF — the mock mode described in §4.2 for
// running Voice-Input without a physical microphone.
type WavCapture struct {
	format      Format
	chunkFrames int

	pcm []byte // S16LE, at format's rate/channels
}

// NewWavCapture loads path and prepares it for chunked, paced replay.
// chunkFrames is the frame count delivered per onFrames callback.
func NewWavCapture(path string, chunkFrames int) (*WavCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open mock wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode mock wav: %w", err)
	}

	format := Format{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Width:      2,
	}
	pcm := intBufferToS16(buf)

	if chunkFrames <= 0 {
		chunkFrames = 1600
	}

	return &WavCapture{format: format, chunkFrames: chunkFrames, pcm: pcm}, nil
}

func intBufferToS16(buf *audio.IntBuffer) []byte {
	out := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		s := int16(v)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func (c *WavCapture) Format() Format { return c.format }

func (c *WavCapture) Start(ctx context.Context, onFrames func(pcm []byte)) error {
	stride := c.format.Channels * 2
	chunkBytes := c.chunkFrames * stride
	if chunkBytes <= 0 || len(c.pcm) == 0 {
		return fmt.Errorf("audio: mock wav capture has no frames to replay")
	}
	interval := time.Duration(float64(c.chunkFrames) / float64(c.format.SampleRate) * float64(time.Second))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			end := offset + chunkBytes
			if end > len(c.pcm) {
				// Loop: wrap around, padding short tail with the start of
				// the file so every delivered chunk is full-sized.
				chunk := make([]byte, chunkBytes)
				n := copy(chunk, c.pcm[offset:])
				copy(chunk[n:], c.pcm[:chunkBytes-n])
				onFrames(chunk)
				offset = chunkBytes - n
				continue
			}
			onFrames(c.pcm[offset:end])
			offset = end
		}
	}
}

func (c *WavCapture) Close() error { return nil }
