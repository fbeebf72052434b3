package resilience

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestReconnectConnectsAndRetries(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connected := make(chan struct{}, 3)
	go Reconnect(ctx, nil, ln.Addr().String(), ReconnectConfig{DialTimeout: time.Second, Backoff: 10 * time.Millisecond}, func(conn net.Conn) {
		connected <- struct{}{}
		buf := make([]byte, 1)
		conn.Read(buf) // blocks until the accepted side closes
	})

	for i := 0; i < 2; i++ {
		c, err := ln.Accept()
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		select {
		case <-connected:
		case <-time.After(time.Second):
			t.Fatal("onConn was not invoked")
		}
		c.Close()
	}
}

func TestReconnectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Reconnect(ctx, nil, "127.0.0.1:1", ReconnectConfig{DialTimeout: 50 * time.Millisecond, Backoff: 10 * time.Millisecond}, func(net.Conn) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnect did not stop after cancel")
	}
}
