package speechrec

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ASR is the external collaborator §1 treats as out of scope: an engine
// that takes samples plus a cancellation check and returns text.
type ASR interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Result is one completed transcription.
type Result struct {
	Text    string
	IsFinal bool
}

// WorkerPool runs at most one transcription worker at a time (invariant
// 7). RESET cancels the running worker, joins with a short timeout, and
// abandons it (suppressing its result) if it hasn't finished.
type WorkerPool struct {
	asr        ASR
	logger     *slog.Logger
	joinTimeout time.Duration
	onResult   func(Result)

	mu      sync.Mutex
	cancel  atomic.Bool
	done    chan struct{}
	running bool
}

// NewWorkerPool builds a pool. onResult is invoked with the transcription
// once it succeeds, unless the worker was cancelled first.
func NewWorkerPool(asr ASR, logger *slog.Logger, joinTimeout time.Duration, onResult func(Result)) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{asr: asr, logger: logger, joinTimeout: joinTimeout, onResult: onResult}
}

// Alive reports whether a worker is currently running.
func (p *WorkerPool) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Spawn starts a transcription worker for samples. No-op if a worker is
// already running — callers must check Alive/ShouldDrain first, but Spawn
// itself also guards against the race.
func (p *WorkerPool) Spawn(samples []float32) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.cancel.Store(false)
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
		}()

		if p.cancel.Load() {
			return
		}

		ctx := context.Background()
		text, err := p.asr.Transcribe(ctx, samples)
		if err != nil {
			p.logger.Error("transcription failed", "error", err)
			return
		}
		if p.cancel.Load() {
			return
		}
		if text == "" {
			return
		}
		p.onResult(Result{Text: text, IsFinal: true})
	}()
}

// Cancel sets the cancel flag and joins with the configured timeout,
// abandoning the worker (its result will be suppressed by the flag) if it
// hasn't finished by then.
func (p *WorkerPool) Cancel() {
	p.cancel.Store(true)

	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return
	}

	select {
	case <-done:
	case <-time.After(p.joinTimeout):
		p.logger.Warn("transcription worker did not finish within join timeout, abandoning")
	}
}
