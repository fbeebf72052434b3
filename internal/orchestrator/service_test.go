package orchestrator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

func buttonMessage(t *testing.T, payload string) bus.Message {
	t.Helper()
	return bus.Message{Topic: "buttons", Payload: []byte(payload)}
}

func TestHandleButtonMessageDispatchesReset(t *testing.T) {
	engine := &fakeEngine{response: "ok"}
	runner, fsm, session := newTestRunner(engine)
	session.BeginUserTurn(time.Now(), "hi")
	fsm.ToProcessing()

	svc := &Service{logger: NoOpLogger{}, fsm: fsm, session: session, runner: runner}
	svc.handleButtonMessage(buttonMessage(t, `{"event":"RESET","timestamp":"2026-01-01T00:00:00Z"}`))

	if fsm.State() != StateListening {
		t.Errorf("state = %v, want LISTENING", fsm.State())
	}
	if len(session.History()) != 0 {
		t.Error("expected session cleared on RESET")
	}
}

func TestHandleButtonMessageAdjustsVolume(t *testing.T) {
	engine := &fakeEngine{response: "ok"}
	runner, fsm, session := newTestRunner(engine)
	svc := &Service{logger: NoOpLogger{}, fsm: fsm, session: session, runner: runner}

	before := session.VoiceGain()
	svc.handleButtonMessage(buttonMessage(t, `{"event":"VOLUME_UP"}`))
	if session.VoiceGain() <= before {
		t.Errorf("expected gain to increase, got %v -> %v", before, session.VoiceGain())
	}

	before = session.VoiceGain()
	svc.handleButtonMessage(buttonMessage(t, `{"event":"VOLUME_DOWN"}`))
	if session.VoiceGain() >= before {
		t.Errorf("expected gain to decrease, got %v -> %v", before, session.VoiceGain())
	}
}

func TestRunTextReaderIgnoresFinalTextOutsideListening(t *testing.T) {
	engine := &fakeEngine{response: "ok"}
	runner, fsm, session := newTestRunner(engine)
	// fsm starts in IDLE; a final transcript arriving before Speech-Rec's
	// control keepalive has moved it to LISTENING must not start a turn.

	addr := "127.0.0.1:58902"
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	svc := &Service{
		cfg:       &config.Orchestrator{SpeechRecTextAddr: addr, ReconnectBackoff: 10 * time.Millisecond},
		logger:    NoOpLogger{},
		fsm:       fsm,
		session:   session,
		runner:    runner,
		publisher: bus.NewPublisher(nil),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.runTextReader(ctx)

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"text":"turn on the lights","is_final":true}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Give the reader loop a chance to process the line; there is no
	// synchronous signal here, so poll briefly for any side effect.
	time.Sleep(50 * time.Millisecond)

	if fsm.State() != StateIdle {
		t.Errorf("state = %v, want IDLE (no transition without LISTENING)", fsm.State())
	}
	if len(session.History()) != 0 {
		t.Errorf("expected no turn run, history = %+v", session.History())
	}
}

func TestHandleButtonMessageIgnoresMalformedPayload(t *testing.T) {
	engine := &fakeEngine{response: "ok"}
	runner, fsm, session := newTestRunner(engine)
	svc := &Service{logger: NoOpLogger{}, fsm: fsm, session: session, runner: runner}
	svc.handleButtonMessage(buttonMessage(t, `not json`))
	// must not panic; state unchanged
	if fsm.State() != StateIdle {
		t.Errorf("state = %v, want IDLE unchanged", fsm.State())
	}
}
