package speechrec

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/pkg/wire"
)

// scenarioASR returns a fixed transcript for any input, modelling
// Scenario A: a clean utterance bounded by silence.
type scenarioASR struct{ text string }

func (s scenarioASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return s.text, nil
}

func TestServiceScenarioA(t *testing.T) {
	cfg := &config.SpeechRec{
		ControlAddr:        "127.0.0.1:58601",
		AudioAddr:          "127.0.0.1:58602",
		TextAddr:           "127.0.0.1:58603",
		ExpectedSampleRate: 16000,
		ExpectedChannels:   1,
		WorkerJoinTimeout:  time.Second,
		TickInterval:       10 * time.Millisecond,
	}
	svc := NewService(cfg, nil, scenarioASR{text: "turn the lights on"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	waitForListener(t, cfg.ControlAddr)
	waitForListener(t, cfg.AudioAddr)
	waitForListener(t, cfg.TextAddr)

	textConn, err := net.Dial("tcp", cfg.TextAddr)
	if err != nil {
		t.Fatalf("dial text port: %v", err)
	}
	defer textConn.Close()

	controlConn, err := net.Dial("tcp", cfg.ControlAddr)
	if err != nil {
		t.Fatalf("dial control port: %v", err)
	}
	defer controlConn.Close()
	if _, err := controlConn.Write([]byte("START\n")); err != nil {
		t.Fatalf("write START: %v", err)
	}

	audioConn, err := net.Dial("tcp", cfg.AudioAddr)
	if err != nil {
		t.Fatalf("dial audio port: %v", err)
	}
	defer audioConn.Close()

	samples := make([]byte, 320) // 160 int16 frames of silence-ish data
	for i := range samples {
		samples[i] = 0x11
	}

	if err := wire.WritePacket(audioConn, wire.NewStatusPacket(0, wire.StatusSpeechDetected)); err != nil {
		t.Fatalf("write status: %v", err)
	}
	if err := wire.WritePacket(audioConn, wire.NewAudioPacket(10, 16000, 1, 1, samples)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := wire.WritePacket(audioConn, wire.NewStatusPacket(20, wire.StatusSilence)); err != nil {
		t.Fatalf("write status: %v", err)
	}

	reader := bufio.NewReader(textConn)
	textConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read text line: %v", err)
	}

	var got TextLine
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("unmarshal text line: %v", err)
	}
	if got.Text != "turn the lights on" || !got.IsFinal {
		t.Errorf("got %+v, want {turn the lights on true}", got)
	}
}

func TestServiceNewConnectionReplacesPrior(t *testing.T) {
	cfg := &config.SpeechRec{
		ControlAddr:        "127.0.0.1:58611",
		AudioAddr:          "127.0.0.1:58612",
		TextAddr:           "127.0.0.1:58613",
		ExpectedSampleRate: 16000,
		ExpectedChannels:   1,
		WorkerJoinTimeout:  time.Second,
		TickInterval:       10 * time.Millisecond,
	}
	svc := NewService(cfg, nil, scenarioASR{text: "hi"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	waitForListener(t, cfg.ControlAddr)

	first, err := net.Dial("tcp", cfg.ControlAddr)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()

	second, err := net.Dial("tcp", cfg.ControlAddr)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	first.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := first.Read(buf); err == nil {
		t.Error("expected prior control connection to be closed once a new one connects")
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
