package orchestrator

import "sync"

// FSM guards the session state field described in §3.3/§5: driven from
// the SR-text reader loop and also set to LISTENING by the button (RESET)
// and keepalive loops, so every access serializes on a single mutex.
type FSM struct {
	mu    sync.Mutex
	state State
}

func NewFSM() *FSM {
	return &FSM{state: StateIdle}
}

func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FSM) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// ToListening transitions on "SR control-channel connected" (IDLE) or on
// TTS stream end (SPEAKING) or on RESET (any state).
func (f *FSM) ToListening() { f.setState(StateListening) }

// ToProcessing transitions on final text received (LISTENING).
func (f *FSM) ToProcessing() { f.setState(StateProcessing) }

// ToSpeaking transitions once the engine has returned (PROCESSING).
func (f *FSM) ToSpeaking() { f.setState(StateSpeaking) }
