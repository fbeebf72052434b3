package orchestrator

import (
	"sync"
	"time"
)

// LatencyBreakdown records per-stage timings for one turn, adapted from
// the teacher's end-to-end latency instrumentation.
type LatencyBreakdown struct {
	UserToSTT         time.Duration
	UserToLLM         time.Duration
	LLM               time.Duration
	UserToTTSFirstByte time.Duration
	TTSTotal          time.Duration
}

// Session is the Orchestrator's per-process conversation state: an
// alternating user/assistant turn history plus the timestamp of the last
// TTS turn's end, per §3.2.
type Session struct {
	mu sync.Mutex

	history        []Turn
	lastTTSEnd     time.Time
	hasLastTTSEnd  bool
	sessionTimeout time.Duration

	voiceGain float64

	lastLatency LatencyBreakdown

	onFlush func([]Turn) // called with the old history before it is replaced/cleared
}

// NewSession builds a Session with the given SESSION_TIMEOUT and flush
// callback (wired to the append-only session log).
func NewSession(sessionTimeout time.Duration, onFlush func([]Turn)) *Session {
	return &Session{
		sessionTimeout: sessionTimeout,
		voiceGain:      1.0,
		onFlush:        onFlush,
	}
}

// BeginUserTurn appends a user turn, first replacing (and flushing) the
// history if the session has timed out per §3.2's invariant.
func (s *Session) BeginUserTurn(now time.Time, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLastTTSEnd && now.Sub(s.lastTTSEnd) > s.sessionTimeout {
		s.flushLocked()
	}
	s.history = append(s.history, Turn{Role: "user", Content: text})
}

// AppendAssistantTurn appends the assistant's full, pre-extraction
// response and stamps last_tts_end_time.
func (s *Session) AppendAssistantTurn(now time.Time, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: "assistant", Content: content})
	s.lastTTSEnd = now
	s.hasLastTTSEnd = true
}

// History returns a copy of the current turn sequence, suitable for
// handing to an Engine.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Clear flushes and clears the history, per RESET/shutdown (§3.2
// lifecycle: "always logging first if non-empty").
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Session) flushLocked() {
	if len(s.history) == 0 {
		return
	}
	if s.onFlush != nil {
		flushed := make([]Turn, len(s.history))
		copy(flushed, s.history)
		s.onFlush(flushed)
	}
	s.history = nil
	s.hasLastTTSEnd = false
}

// SetVoiceGain adjusts the session's linear volume scale; clamped to
// [0, 2] so VOLUME_UP/DOWN can't invert or silence-forever the output.
func (s *Session) SetVoiceGain(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceGain += delta
	if s.voiceGain < 0 {
		s.voiceGain = 0
	}
	if s.voiceGain > 2 {
		s.voiceGain = 2
	}
	return s.voiceGain
}

func (s *Session) VoiceGain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceGain
}

func (s *Session) SetLastLatency(l LatencyBreakdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLatency = l
}

func (s *Session) LastLatency() LatencyBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLatency
}
