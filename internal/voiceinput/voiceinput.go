// Package voiceinput implements §4.2: a VAD gate sitting between a raw
// capture source and the framed link to Speech-Rec, forwarding audio only
// while the gate says so and emitting status packets on transitions.
package voiceinput

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/internal/config"
	"github.com/lokutor-ai/voxfabric/internal/resilience"
	"github.com/lokutor-ai/voxfabric/internal/vad"
	"github.com/lokutor-ai/voxfabric/pkg/wire"
)

// Service drives one Capture through the VAD gate and frames the result
// onto a reconnecting TCP link to Speech-Rec's audio port.
type Service struct {
	cfg    *config.VoiceInput
	logger *slog.Logger

	capture     audio.Capture
	reformatter *audio.Reformatter
	classifier  *vad.RMSClassifier
	gate        *vad.Gate

	target audio.Format
	start  time.Time
	seq    uint64

	queue   chan wire.VadPacket
	dropped atomic.Uint64
}

// NewService builds a Service. capture supplies raw frames at its own
// Format(); they are reformatted to 16kHz mono S16 (the fixed VAD target
// per §4.2) before classification and framing.
func NewService(cfg *config.VoiceInput, logger *slog.Logger, capture audio.Capture) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	target := audio.Format{
		SampleRate: cfg.TargetSampleRate,
		Channels:   cfg.TargetChannels,
		Width:      2,
	}

	classifier := vad.NewRMSClassifier(cfg.VADThreshold, cfg.VADMinConsecutive)
	gate, err := vad.NewGate(classifier.Classify, cfg.Hangover)
	if err != nil {
		return nil, err
	}

	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = 100
	}

	return &Service{
		cfg:         cfg,
		logger:      logger,
		capture:     capture,
		reformatter: audio.NewReformatter(logger, target),
		classifier:  classifier,
		gate:        gate,
		target:      target,
		queue:       make(chan wire.VadPacket, queueDepth),
	}, nil
}

// Run starts the sender (reconnecting to Speech-Rec) and the capture
// device, blocking until ctx is cancelled or capture fails unrecoverably.
func (s *Service) Run(ctx context.Context) error {
	s.start = time.Now()

	reconnectCfg := resilience.ReconnectConfig{
		DialTimeout: s.cfg.ReconnectTimeout,
		Backoff:     s.cfg.ReconnectBackoff,
	}
	go resilience.Reconnect(ctx, s.logger, s.cfg.SpeechRecAddr, reconnectCfg, s.sendLoop)
	go s.logDropsLoop(ctx)

	deviceFormat := s.capture.Format()
	return s.capture.Start(ctx, func(pcm []byte) {
		s.onFrames(pcm, deviceFormat)
	})
}

// logDropsLoop logs the cumulative dropped-packet count every
// DropLogInterval, per §4.2's drop-stats requirement. It logs nothing
// while the count is unchanged since the last tick.
func (s *Service) logDropsLoop(ctx context.Context) {
	interval := s.cfg.DropLogInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastReported uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := s.dropped.Load()
			if total != lastReported {
				s.logger.Warn("voiceinput: dropped packets", "total", total, "since_last", total-lastReported)
				lastReported = total
			}
		}
	}
}

func (s *Service) sendLoop(conn net.Conn) {
	for pkt := range s.queue {
		if err := wire.WritePacket(conn, pkt); err != nil {
			s.logger.Warn("voiceinput: write failed, reconnecting", "error", err)
			return
		}
	}
}

func (s *Service) onFrames(pcm []byte, deviceFormat audio.Format) {
	reformatted := s.reformatter.Process(pcm, deviceFormat)
	if len(reformatted) == 0 {
		return
	}

	transition := s.gate.Process(reformatted)
	ts := uint64(time.Since(s.start).Milliseconds())

	if transition.StatusChange {
		s.enqueue(wire.NewStatusPacket(ts, toWireStatus(transition.Status)))
	}
	if transition.EmitAudio {
		s.seq++
		s.enqueue(wire.NewAudioPacket(ts, uint32(s.target.SampleRate), uint32(s.target.Channels), s.seq, reformatted))
	}
}

// DroppedCount reports the cumulative number of packets evicted from the
// send queue before a reconnect ever delivered them.
func (s *Service) DroppedCount() uint64 {
	return s.dropped.Load()
}

// toWireStatus adapts vad.Status, which has no "unknown" value, onto
// wire.Status, which reserves zero for it.
func toWireStatus(s vad.Status) wire.Status {
	switch s {
	case vad.StatusSilence:
		return wire.StatusSilence
	case vad.StatusSpeechDetected:
		return wire.StatusSpeechDetected
	case vad.StatusSpeechHangover:
		return wire.StatusSpeechHangover
	default:
		return wire.StatusUnknown
	}
}

// enqueue drops the oldest queued packet to make room for a new one rather
// than blocking the capture callback (§5: drop-oldest everywhere except
// the Speech-Rec utterance buffer). Every eviction increments the drop
// counter logDropsLoop reports on DropLogInterval.
func (s *Service) enqueue(pkt wire.VadPacket) {
	select {
	case s.queue <- pkt:
		return
	default:
	}
	select {
	case <-s.queue:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.queue <- pkt:
	default:
	}
}
