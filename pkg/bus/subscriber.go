package bus

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// deliveryQueueLen bounds the per-subscriber delivery channel. A slow
// consumer loses the oldest undelivered message rather than stalling the
// connection's read loop — dropping is the policy everywhere in this system
// except the speech-rec utterance buffer.
const deliveryQueueLen = 100

// Subscriber receives [topic, payload] messages from one Publisher
// connection, filtered to a fixed set of topics of interest.
type Subscriber struct {
	logger *slog.Logger
	topics map[string]struct{}
}

// NewSubscriber creates a Subscriber that only delivers messages whose topic
// is in topics. An empty topic list delivers everything.
func NewSubscriber(logger *slog.Logger, topics ...string) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &Subscriber{logger: logger, topics: set}
}

func (s *Subscriber) wanted(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Bind listens on addr and relays every message from whichever publisher
// eventually connects. Used by the Orchestrator→Voice-Output link, where the
// subscriber (Voice-Output) binds and the publisher (Orchestrator) connects.
func (s *Subscriber) Bind(ctx context.Context, addr string) (<-chan Message, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	out := make(chan Message, deliveryQueueLen)
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go s.acceptLoop(ctx, ln, out)
	return out, nil
}

func (s *Subscriber) acceptLoop(ctx context.Context, ln net.Listener, out chan Message) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("bus subscriber accept failed", "error", err)
			continue
		}
		go s.readLoop(ctx, conn, out)
	}
}

// Connect dials addr and relays every message received, reconnecting with
// backoff until ctx is cancelled. Used by the Buttons→Orchestrator link,
// where the publisher (Buttons) binds and the subscriber (Orchestrator)
// initiates the connection.
func (s *Subscriber) Connect(ctx context.Context, addr string) <-chan Message {
	out := make(chan Message, deliveryQueueLen)
	go s.connectLoop(ctx, addr, out)
	return out
}

func (s *Subscriber) connectLoop(ctx context.Context, addr string, out chan Message) {
	backoff := 2 * time.Second
	for ctx.Err() == nil {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			s.logger.Warn("bus subscriber connect failed", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		s.readLoop(ctx, conn, out)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn net.Conn, out chan Message) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		m, err := readMessage(conn)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("bus subscriber connection closed", "error", err)
			}
			return
		}
		if !s.wanted(m.Topic) {
			continue
		}
		select {
		case out <- m:
		default:
			// Delivery queue full: drop the oldest queued message and
			// deliver this one, keeping the subscriber near real time.
			select {
			case <-out:
			default:
			}
			select {
			case out <- m:
			default:
			}
		}
	}
}
