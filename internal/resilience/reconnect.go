// Package resilience provides the reconnect-with-backoff loop used by the
// Voice-Input and Orchestrator client links to Speech-Rec, and the
// retry-with-jitter helper used by the ASR HTTP call. pkg/bus runs its own
// reconnect loops and does not use this package.
package resilience

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// ReconnectConfig tunes a Reconnect loop. Zero-valued fields fall back to
// the defaults below via withDefaults.
type ReconnectConfig struct {
	DialTimeout time.Duration
	Backoff     time.Duration
}

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultBackoff     = 2 * time.Second
)

func (c ReconnectConfig) withDefaults() ReconnectConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}

// Reconnect dials addr and hands the live connection to onConn, which
// blocks until the connection is no longer usable. When onConn returns,
// Reconnect waits Backoff and dials again, forever, until ctx is
// cancelled. This is the one egress pattern every service in this system
// shares: Voice-Input's link to Speech-Rec, and each of the Orchestrator's
// two Speech-Rec client sockets.
func Reconnect(ctx context.Context, logger *slog.Logger, addr string, cfg ReconnectConfig, onConn func(net.Conn)) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	for ctx.Err() == nil {
		dialer := net.Dialer{Timeout: cfg.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			logger.Warn("reconnect: dial failed", "addr", addr, "error", err)
			if !sleepOrDone(ctx, cfg.Backoff) {
				return
			}
			continue
		}

		onConn(conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if !sleepOrDone(ctx, cfg.Backoff) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
