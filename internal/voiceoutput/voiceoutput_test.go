package voiceoutput

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

type fakeSink struct {
	writes [][]byte
}

func (f *fakeSink) Write(pcm []byte) { f.writes = append(f.writes, append([]byte(nil), pcm...)) }
func (f *fakeSink) Close() error     { return nil }

func TestServiceWritesMatchingChannelAudioUnchanged(t *testing.T) {
	sink := &fakeSink{}
	device := audio.Format{SampleRate: 48000, Channels: 2, Width: 4}
	svc := NewService(nil, device, device, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := "127.0.0.1:58801"
	go svc.Run(ctx, addr)
	waitForListener(t, addr)

	pub := bus.NewPublisher(nil)
	pub.Connect(ctx, addr)
	waitForSubscribers(t, pub)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pub.Publish(audioTopic, payload)

	waitFor(t, func() bool { return len(sink.writes) == 1 })
	if string(sink.writes[0]) != string(payload) {
		t.Errorf("got %v, want unchanged %v", sink.writes[0], payload)
	}
}

func TestServiceConvertsMonoInputToStereoDevice(t *testing.T) {
	sink := &fakeSink{}
	device := audio.Format{SampleRate: 48000, Channels: 2, Width: 4}
	input := audio.Format{SampleRate: 48000, Channels: 1, Width: 4}
	svc := NewService(nil, device, input, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := "127.0.0.1:58802"
	go svc.Run(ctx, addr)
	waitForListener(t, addr)

	pub := bus.NewPublisher(nil)
	pub.Connect(ctx, addr)
	waitForSubscribers(t, pub)

	mono := []byte{0x10, 0x00, 0x00, 0x00} // one S32 frame, mono
	pub.Publish(audioTopic, mono)

	waitFor(t, func() bool { return len(sink.writes) == 1 })
	if len(sink.writes[0]) != 8 {
		t.Fatalf("got %d bytes, want 8 (duplicated to stereo)", len(sink.writes[0]))
	}
}

func TestServiceStopControlMessageWritesNoAudio(t *testing.T) {
	sink := &fakeSink{}
	device := audio.Format{SampleRate: 48000, Channels: 2, Width: 4}
	svc := NewService(nil, device, device, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := "127.0.0.1:58803"
	go svc.Run(ctx, addr)
	waitForListener(t, addr)

	pub := bus.NewPublisher(nil)
	pub.Connect(ctx, addr)
	waitForSubscribers(t, pub)

	pub.Publish(controlTopic, []byte(`{"type":"control","command":"stop"}`))
	time.Sleep(50 * time.Millisecond)
	if len(sink.writes) != 0 {
		t.Errorf("expected no audio writes from a control message")
	}
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener at %s did not come up", addr)
}

func waitForSubscribers(t *testing.T, pub *bus.Publisher) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pub.SubscriberCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscriber never connected")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
