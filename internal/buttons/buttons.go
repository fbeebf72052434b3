// Package buttons implements the hardware/mock button event source
// described in §4.1: three physical lines mapped to logical events, with
// a hold timer promoting a short press to its LONG_ variant.
package buttons

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

// Line is one of the three hardware lines this service watches.
type Line string

const (
	LineReset     Line = "RESET"
	LineVolumeUp  Line = "VOLUME_UP"
	LineVolumeDown Line = "VOLUME_DOWN"
)

// Source is the narrow interface over the physical (or mock) button
// hardware: a channel of line-state transitions, true on press.
type Source interface {
	Events() <-chan LineEvent
}

// LineEvent is one raw press/release transition on a line.
type LineEvent struct {
	Line    Line
	Pressed bool
	At      time.Time
}

// Event is the logical event published on the bus: a RESET/VOLUME_* or,
// after a hold of HoldTime, its LONG_ variant.
type Event struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// Service watches a Source and publishes logical Events to the bus.
type Service struct {
	source   Source
	logger   *slog.Logger
	holdTime time.Duration
	publisher *bus.Publisher
	now      func() time.Time
}

func NewService(source Source, logger *slog.Logger, holdTime time.Duration, publisher *bus.Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger, holdTime: holdTime, publisher: publisher, now: time.Now}
}

// Run binds the publisher and processes line events until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, bindAddr string) error {
	if err := s.publisher.Bind(ctx, bindAddr); err != nil {
		return err
	}

	pressedAt := make(map[Line]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.source.Events():
			if !ok {
				return nil
			}
			if ev.Pressed {
				pressedAt[ev.Line] = ev.At
				continue
			}

			start, held := pressedAt[ev.Line]
			delete(pressedAt, ev.Line)
			if !held {
				continue
			}

			name := string(ev.Line)
			if ev.At.Sub(start) >= s.holdTime {
				name = "LONG_" + name
			}
			s.publish(name)
		}
	}
}

func (s *Service) publish(event string) {
	payload, err := json.Marshal(Event{Event: event, Timestamp: s.now().UTC().Format(time.RFC3339)})
	if err != nil {
		s.logger.Error("buttons: failed to marshal event", "error", err)
		return
	}
	s.publisher.Publish("buttons", payload)
}
