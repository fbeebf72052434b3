package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/resilience"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

// buttonEvent is the JSON payload published on the Buttons bus (§6).
type buttonEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// textLine mirrors Speech-Rec's text-port JSON record (§6).
type textLine struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Service runs the Orchestrator's five cooperating loops (§4.4): the
// SR-control keepalive, the SR-text reader, the button subscriber, the
// per-turn engine call, and the audio publisher (folded into TurnRunner).
type Service struct {
	cfg    *config.Orchestrator
	logger Logger

	fsm     *FSM
	session *Session
	runner  *TurnRunner

	publisher *bus.Publisher

	controlMu   sync.Mutex
	controlConn net.Conn
}

// NewService wires a Service around an already-constructed Engine; it
// builds the reformatter (targeting the configured bus format), the FSM,
// the session and the bus publisher itself.
func NewService(cfg *config.Orchestrator, logger Logger, engine Engine, onFlush func([]Turn)) *Service {
	if logger == nil {
		logger = NoOpLogger{}
	}
	fsm := NewFSM()
	session := NewSession(cfg.SessionTimeout, onFlush)
	reformatter := audio.NewReformatter(nil, audio.Format{
		SampleRate: cfg.BusTargetSampleRate,
		Channels:   cfg.BusTargetChannels,
		Width:      cfg.BusTargetSampleWidth,
	})
	publisher := bus.NewPublisher(nil)
	runner := NewTurnRunner(logger, fsm, session, engine, reformatter, publisher)

	return &Service{
		cfg:       cfg,
		logger:    logger,
		fsm:       fsm,
		session:   session,
		runner:    runner,
		publisher: publisher,
	}
}

// Run connects the bus publisher, starts the three long-running loops
// (control keepalive, text reader, button subscriber) and blocks until ctx
// is cancelled; the engine call and audio publishing run inside RunTurn.
func (s *Service) Run(ctx context.Context) {
	s.publisher.Connect(ctx, s.cfg.VoiceOutputBusAddr)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.runControlKeepalive(ctx) }()
	go func() { defer wg.Done(); s.runTextReader(ctx) }()
	go func() { defer wg.Done(); s.runButtonSubscriber(ctx) }()
	wg.Wait()

	if ctx.Err() != nil {
		s.session.Clear()
	}
}

// runControlKeepalive is loop 1: a persistent client socket to
// Speech-Rec's control port. On (re)connect it sends START and drives the
// FSM from IDLE to LISTENING.
func (s *Service) runControlKeepalive(ctx context.Context) {
	resilience.Reconnect(ctx, nil, s.cfg.SpeechRecControlAddr, resilience.ReconnectConfig{
		DialTimeout: 5 * time.Second,
		Backoff:     s.cfg.ReconnectBackoff,
	}, func(conn net.Conn) {
		s.controlMu.Lock()
		s.controlConn = conn
		s.controlMu.Unlock()

		if _, err := conn.Write([]byte("START\n")); err != nil {
			s.logger.Warn("orchestrator: failed to send START", "error", err)
			return
		}
		s.fsm.ToListening()

		// Block until the connection dies so Reconnect doesn't redial
		// while it's still live.
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})
}

func (s *Service) sendSpeechRecCommand(cmd string) {
	s.controlMu.Lock()
	conn := s.controlConn
	s.controlMu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		s.logger.Warn("orchestrator: failed to send command to speech-rec", "command", cmd, "error", err)
	}
}

// runTextReader is loop 2: a persistent client socket reading
// Speech-Rec's text port, line-splitting and parsing JSON, and driving
// turns on final non-empty text.
func (s *Service) runTextReader(ctx context.Context) {
	resilience.Reconnect(ctx, nil, s.cfg.SpeechRecTextAddr, resilience.ReconnectConfig{
		DialTimeout: 5 * time.Second,
		Backoff:     s.cfg.ReconnectBackoff,
	}, func(conn net.Conn) {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			var line textLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				s.logger.Warn("orchestrator: malformed text line", "error", err)
				continue
			}
			if !line.IsFinal || line.Text == "" {
				continue
			}
			if s.fsm.State() != StateListening {
				s.logger.Warn("orchestrator: dropping final text outside LISTENING", "state", s.fsm.State())
				continue
			}
			s.fsm.ToProcessing()
			s.runner.RunTurn(ctx, line.Text)
		}
	})
}

// runButtonSubscriber is loop 3: subscribes to the Buttons bus and
// dispatches RESET/LONG_RESET/VOLUME_* events.
func (s *Service) runButtonSubscriber(ctx context.Context) {
	sub := bus.NewSubscriber(nil)
	messages := sub.Connect(ctx, s.cfg.ButtonsBusAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.handleButtonMessage(msg)
		}
	}
}

func (s *Service) handleButtonMessage(msg bus.Message) {
	var ev buttonEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		s.logger.Warn("orchestrator: malformed button event", "error", err)
		return
	}

	switch {
	case ev.Event == "RESET" || ev.Event == "LONG_RESET":
		s.runner.HandleReset()
		s.sendSpeechRecCommand("RESET")
	case ev.Event == "VOLUME_UP" || ev.Event == "LONG_VOLUME_UP":
		s.session.SetVoiceGain(0.1)
	case ev.Event == "VOLUME_DOWN" || ev.Event == "LONG_VOLUME_DOWN":
		s.session.SetVoiceGain(-0.1)
	default:
		s.logger.Warn("orchestrator: unknown button event", "event", ev.Event)
	}
}
