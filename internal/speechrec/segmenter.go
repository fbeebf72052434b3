package speechrec

import "github.com/lokutor-ai/voxfabric/pkg/wire"

// Segmenter implements the segmentation algorithm from §4.3: while
// listening, it tracks whether the stream is currently "speaking" (per
// the last SPEECH_DETECTED/SPEECH_HANGOVER status) and marks
// pending_transcription true on the speaking→SILENCE transition.
type Segmenter struct {
	isListening           bool
	speaking              bool
	pendingTranscription  bool
}

// Start implements the START command: begin listening. Callers also reset
// the Buffer separately; Service keeps no packet queue, so there is none to
// clear.
func (s *Segmenter) Start() {
	s.isListening = true
	s.speaking = false
	s.pendingTranscription = false
}

// Stop implements the STOP command: stop listening and flush whatever
// remains by marking pending_transcription.
func (s *Segmenter) Stop() {
	s.isListening = false
	s.pendingTranscription = true
}

// ResetState implements the stateful part of RESET: stop listening and
// clear pending state. The Buffer reset and worker cancellation are
// handled by the caller.
func (s *Segmenter) ResetState() {
	s.isListening = false
	s.speaking = false
	s.pendingTranscription = false
}

// ObserveStatus feeds one incoming status transition to the segmenter.
func (s *Segmenter) ObserveStatus(status wire.Status) {
	if !s.isListening {
		return
	}
	switch status {
	case wire.StatusSpeechDetected, wire.StatusSpeechHangover:
		s.speaking = true
	case wire.StatusSilence:
		if s.speaking {
			s.pendingTranscription = true
		}
		s.speaking = false
	}
}

// ShouldDrain reports whether a transcription should be spawned now: a
// transcription is pending and no worker is currently alive.
func (s *Segmenter) ShouldDrain(workerAlive bool) bool {
	return s.pendingTranscription && !workerAlive
}

// ClearPending clears pending_transcription after a worker has been
// spawned for it.
func (s *Segmenter) ClearPending() {
	s.pendingTranscription = false
}

func (s *Segmenter) IsListening() bool { return s.isListening }
