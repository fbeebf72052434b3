package speechrec

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/pkg/wire"
)

// TextLine is one line-delimited JSON record emitted on the text port,
// per §6: `{"text": string, "is_final": bool}\n`.
type TextLine struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Service ties the audio, control, and text ports together around the
// Buffer/Segmenter/WorkerPool described in §4.3.
type Service struct {
	cfg    *config.SpeechRec
	logger *slog.Logger

	buffer  *Buffer
	workers *WorkerPool

	mu  sync.Mutex
	seg Segmenter

	rateWarnedOnce sync.Once

	textMu   sync.Mutex
	textConn net.Conn
}

// NewService builds a Service. asr performs the actual transcription.
func NewService(cfg *config.SpeechRec, logger *slog.Logger, asr ASR) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, logger: logger, buffer: &Buffer{}}
	s.workers = NewWorkerPool(asr, logger, cfg.WorkerJoinTimeout, s.emitResult)
	return s
}

func (s *Service) emitResult(r Result) {
	line, err := json.Marshal(TextLine{Text: r.Text, IsFinal: r.IsFinal})
	if err != nil {
		s.logger.Error("speechrec: failed to marshal text line", "error", err)
		return
	}

	s.textMu.Lock()
	conn := s.textConn
	s.textMu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		s.logger.Warn("speechrec: text port write failed", "error", err)
	}
}

// Run starts all three TCP servers and the segmentation tick loop,
// blocking until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	audioLn, err := net.Listen("tcp", s.cfg.AudioAddr)
	if err != nil {
		return err
	}
	controlLn, err := net.Listen("tcp", s.cfg.ControlAddr)
	if err != nil {
		audioLn.Close()
		return err
	}
	textLn, err := net.Listen("tcp", s.cfg.TextAddr)
	if err != nil {
		audioLn.Close()
		controlLn.Close()
		return err
	}

	go closeOnDone(ctx, audioLn)
	go closeOnDone(ctx, controlLn)
	go closeOnDone(ctx, textLn)

	go s.acceptSingleClient(ctx, audioLn, s.handleAudioConn)
	go s.acceptSingleClient(ctx, controlLn, s.handleControlConn)
	go s.acceptTextClient(ctx, textLn)

	s.tickLoop(ctx)
	return nil
}

func closeOnDone(ctx context.Context, ln net.Listener) {
	<-ctx.Done()
	ln.Close()
}

// acceptSingleClient accepts connections forever; each new connection
// replaces any prior one, matching "each port accepts exactly one client
// at a time; a new connection replaces any prior one" (§4.3).
func (s *Service) acceptSingleClient(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) {
	var mu sync.Mutex
	var current net.Conn

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("speechrec: accept failed", "addr", ln.Addr(), "error", err)
			continue
		}

		mu.Lock()
		if current != nil {
			current.Close()
		}
		current = conn
		mu.Unlock()

		go handle(ctx, conn)
	}
}

func (s *Service) handleAudioConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	framer := wire.NewFramer(conn, 0)

	for {
		if ctx.Err() != nil {
			return
		}
		p, err := framer.ReadPacket()
		if err != nil {
			return
		}
		s.ingestPacket(p)
	}
}

func (s *Service) ingestPacket(p wire.VadPacket) {
	if p.HasAudio {
		if p.Audio.Channels != 1 || p.Audio.SampleRate != uint32(s.cfg.ExpectedSampleRate) {
			s.rateWarnedOnce.Do(func() {
				s.logger.Warn("speechrec: audio packet format mismatch, not resampling",
					"channels", p.Audio.Channels, "sample_rate", p.Audio.SampleRate)
			})
			return
		}
		s.buffer.Append(PCM16ToFloat32(p.Audio.Data))
		return
	}

	s.mu.Lock()
	s.seg.ObserveStatus(p.Status)
	s.mu.Unlock()
}

func (s *Service) handleControlConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		s.handleCommand(cmd)
	}
}

func (s *Service) handleCommand(cmd string) {
	switch cmd {
	case "START":
		s.buffer.Reset()
		s.mu.Lock()
		s.seg.Start()
		s.mu.Unlock()
	case "STOP":
		s.mu.Lock()
		s.seg.Stop()
		s.mu.Unlock()
	case "RESET":
		s.mu.Lock()
		s.seg.ResetState()
		s.mu.Unlock()
		s.workers.Cancel()
		s.buffer.Reset()
	default:
		if cmd != "" {
			s.logger.Warn("speechrec: unknown control command", "command", cmd)
		}
	}
}

func (s *Service) acceptTextClient(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("speechrec: text accept failed", "error", err)
			continue
		}

		s.textMu.Lock()
		if s.textConn != nil {
			s.textConn.Close()
		}
		s.textConn = conn
		s.textMu.Unlock()
	}
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			shouldDrain := s.seg.ShouldDrain(s.workers.Alive())
			if shouldDrain {
				s.seg.ClearPending()
			}
			s.mu.Unlock()

			if shouldDrain {
				samples := s.buffer.Drain()
				if len(samples) > 0 {
					s.workers.Spawn(samples)
				}
			}
		}
	}
}
