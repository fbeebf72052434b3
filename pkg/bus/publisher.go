package bus

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Publisher broadcasts [topic, payload] messages to every currently
// connected subscriber connection. A connection whose write fails is logged
// and dropped (§5 "dropping is the policy everywhere except the utterance
// buffer"). Writes are synchronous and carry no deadline, so a subscriber
// that stops reading can stall Publish until its connection fails.
type Publisher struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewPublisher creates a Publisher. A nil logger falls back to slog.Default().
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger, conns: make(map[net.Conn]struct{})}
}

// Bind listens on addr and accepts any number of subscriber connections in
// the background until ctx is cancelled.
func (p *Publisher) Bind(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go p.acceptLoop(ctx, ln)
	return nil
}

func (p *Publisher) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("bus publisher accept failed", "error", err)
			continue
		}
		p.addConn(conn)
		go p.watchConn(ctx, conn)
	}
}

// Connect dials addr and maintains the connection with a background
// reconnect loop until ctx is cancelled — used by the one link in this
// system (Orchestrator→Voice-Output) where the publisher, not the
// subscriber, initiates the TCP connection.
func (p *Publisher) Connect(ctx context.Context, addr string) {
	go p.connectLoop(ctx, addr)
}

func (p *Publisher) connectLoop(ctx context.Context, addr string) {
	backoff := 2 * time.Second
	for ctx.Err() == nil {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			p.logger.Warn("bus publisher connect failed", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		p.addConn(conn)
		p.watchConn(ctx, conn)
		// watchConn returns once the connection has failed or ctx is done;
		// loop around to reconnect unless we're shutting down.
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

func (p *Publisher) addConn(conn net.Conn) {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()
}

// watchConn blocks, reading (and discarding) from conn purely to detect when
// the peer closes it, then removes it from the fan-out set.
func (p *Publisher) watchConn(ctx context.Context, conn net.Conn) {
	defer func() {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()

	buf := make([]byte, 1)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// Publish writes [topic, payload] to every live subscriber connection.
// Write failures drop that connection; they never propagate to the caller.
func (p *Publisher) Publish(topic string, payload []byte) {
	m := Message{Topic: topic, Payload: payload}

	p.mu.Lock()
	targets := make([]net.Conn, 0, len(p.conns))
	for c := range p.conns {
		targets = append(targets, c)
	}
	p.mu.Unlock()

	for _, c := range targets {
		if err := writeMessage(c, m); err != nil {
			p.logger.Warn("bus publish write failed, dropping subscriber", "error", err)
			p.mu.Lock()
			delete(p.conns, c)
			p.mu.Unlock()
			c.Close()
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
