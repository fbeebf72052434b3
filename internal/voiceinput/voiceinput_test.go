package voiceinput

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/vad"
	"github.com/lokutor-ai/voxfabric/pkg/wire"
)

// fakeCapture replays a fixed sequence of frames, one per push call, at a
// fixed device Format, and blocks until ctx is cancelled.
type fakeCapture struct {
	format audio.Format
	frames chan []byte
}

func newFakeCapture(format audio.Format) *fakeCapture {
	return &fakeCapture{format: format, frames: make(chan []byte, 16)}
}

func (c *fakeCapture) Format() audio.Format { return c.format }

func (c *fakeCapture) Start(ctx context.Context, onFrames func(pcm []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.frames:
			onFrames(f)
		}
	}
}

func (c *fakeCapture) Close() error { return nil }

func (c *fakeCapture) push(pcm []byte) { c.frames <- pcm }

func silenceFrame(n int) []byte { return make([]byte, n*2) }

func loudFrame(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(20000)))
	}
	return buf
}

func testConfig() *config.VoiceInput {
	return &config.VoiceInput{
		DeviceSampleRate:  16000,
		DeviceChannels:    1,
		DeviceSampleWidth: 2,
		TargetSampleRate:  16000,
		TargetChannels:    1,
		ChunkFrames:       160,
		VADThreshold:      0.1,
		VADMinConsecutive: 1,
		Hangover:          200 * time.Millisecond,
		ReconnectTimeout:  time.Second,
		ReconnectBackoff:  20 * time.Millisecond,
		QueueDepth:        32,
	}
}

func TestServiceEmitsStatusThenAudioOnSpeech(t *testing.T) {
	capture := newFakeCapture(audio.Format{SampleRate: 16000, Channels: 1, Width: 2})
	svc, err := NewService(testConfig(), nil, capture)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := "127.0.0.1:58901"
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	svc.cfg.SpeechRecAddr = addr

	go svc.Run(ctx)

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	capture.push(loudFrame(160))

	framer := wire.NewFramer(conn, 0)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	pkt, err := framer.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket (status): %v", err)
	}
	if pkt.HasAudio {
		t.Fatalf("expected a status packet first, got audio")
	}
	if pkt.Status != wire.StatusSpeechDetected {
		t.Errorf("status = %v, want SPEECH_DETECTED", pkt.Status)
	}

	pkt, err = framer.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket (audio): %v", err)
	}
	if !pkt.HasAudio {
		t.Fatalf("expected an audio packet second, got status")
	}
	if pkt.Audio.SampleRate != 16000 || pkt.Audio.Channels != 1 {
		t.Errorf("audio format = %d/%d, want 16000/1", pkt.Audio.SampleRate, pkt.Audio.Channels)
	}
}

func TestServiceDropsSilenceWithoutEmittingAudio(t *testing.T) {
	capture := newFakeCapture(audio.Format{SampleRate: 16000, Channels: 1, Width: 2})
	svc, err := NewService(testConfig(), nil, capture)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.onFrames(silenceFrame(160), capture.Format())
	select {
	case pkt := <-svc.queue:
		t.Fatalf("expected no packet for silence, got %+v", pkt)
	default:
	}
}

func TestEnqueueCountsEvictionsWhenQueueIsFull(t *testing.T) {
	capture := newFakeCapture(audio.Format{SampleRate: 16000, Channels: 1, Width: 2})
	cfg := testConfig()
	cfg.QueueDepth = 4
	svc, err := NewService(cfg, nil, capture)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	sends := 400 + cap(svc.queue)
	for i := 0; i < sends; i++ {
		svc.enqueue(wire.NewStatusPacket(uint64(i), wire.StatusSpeechDetected))
	}

	if got := svc.DroppedCount(); got < 400 {
		t.Errorf("DroppedCount() = %d, want >= 400", got)
	}
}

func TestToWireStatusMapping(t *testing.T) {
	cases := []struct {
		in  vad.Status
		out wire.Status
	}{
		{vad.StatusSilence, wire.StatusSilence},
		{vad.StatusSpeechDetected, wire.StatusSpeechDetected},
		{vad.StatusSpeechHangover, wire.StatusSpeechHangover},
	}
	for _, c := range cases {
		if got := toWireStatus(c.in); got != c.out {
			t.Errorf("toWireStatus(%v) = %v, want %v", c.in, got, c.out)
		}
	}
}
