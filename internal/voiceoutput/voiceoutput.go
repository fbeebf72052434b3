// Package voiceoutput implements the PCM fan-in sink described in §4.6:
// a pub/sub subscriber bound for the Orchestrator to connect to, feeding
// a reformatter and a speaker sink.
package voiceoutput

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

const (
	audioTopic   = "voice_output_audio"
	controlTopic = "voice_output_control"
)

// controlMessage mirrors the Orchestrator's control-topic JSON payload.
type controlMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// Service binds the bus, reformats mismatched input channels to the
// device format, and writes to a Sink.
type Service struct {
	logger      *slog.Logger
	subscriber  *bus.Subscriber
	device      audio.Format
	inputFormat audio.Format
	reformatter *audio.Reformatter
	sink        audio.Sink
}

// NewService builds a Service. inputFormat describes the channel count
// the Orchestrator is expected to publish at (§4.6: "a channel-count
// mismatch (config vs. input channels env) triggers an inline
// conversion"); the sample rate and width are assumed to already match
// device since only the channel rule is specified for this path.
func NewService(logger *slog.Logger, device, inputFormat audio.Format, sink audio.Sink) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		subscriber:  bus.NewSubscriber(logger, audioTopic, controlTopic),
		device:      device,
		inputFormat: inputFormat,
		reformatter: audio.NewReformatter(logger, device),
		sink:        sink,
	}
}

// Run binds the subscriber at bindAddr and processes deliveries until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context, bindAddr string) error {
	messages, err := s.subscriber.Bind(ctx, bindAddr)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(msg)
		}
	}
}

func (s *Service) handle(msg bus.Message) {
	switch msg.Topic {
	case audioTopic:
		s.handleAudio(msg.Payload)
	case controlTopic:
		s.handleControl(msg.Payload)
	}
}

func (s *Service) handleAudio(payload []byte) {
	pcm := payload
	if s.inputFormat.Channels != s.device.Channels {
		pcm = s.reformatter.Process(payload, s.inputFormat)
	}
	s.sink.Write(pcm)
}

func (s *Service) handleControl(payload []byte) {
	var ctl controlMessage
	if err := json.Unmarshal(payload, &ctl); err != nil {
		s.logger.Warn("voiceoutput: malformed control message", "error", err)
		return
	}
	switch ctl.Command {
	case "stop", "pause":
		// No-ops in the reference implementation: hooks for future
		// playback-interruption support.
	default:
		if ctl.Command != "" {
			s.logger.Warn("voiceoutput: unknown control command", "command", ctl.Command)
		}
	}
}
