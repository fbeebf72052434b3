package orchestrator

import "testing"

func TestFSMInitialStateIsIdle(t *testing.T) {
	f := NewFSM()
	if f.State() != StateIdle {
		t.Errorf("initial state = %v, want IDLE", f.State())
	}
}

func TestFSMTransitions(t *testing.T) {
	f := NewFSM()
	f.ToListening()
	if f.State() != StateListening {
		t.Errorf("state = %v, want LISTENING", f.State())
	}
	f.ToProcessing()
	if f.State() != StateProcessing {
		t.Errorf("state = %v, want PROCESSING", f.State())
	}
	f.ToSpeaking()
	if f.State() != StateSpeaking {
		t.Errorf("state = %v, want SPEAKING", f.State())
	}
	f.ToListening()
	if f.State() != StateListening {
		t.Errorf("state = %v, want LISTENING", f.State())
	}
}
