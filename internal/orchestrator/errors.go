package orchestrator

import "errors"

var (
	ErrEmptyResponse  = errors.New("engine returned empty response")
	ErrEngineFailed   = errors.New("engine turn failed")
	ErrLLMFailed      = errors.New("language model generation failed")
	ErrTTSFailed      = errors.New("text-to-speech synthesis failed")
	ErrNilEngine      = errors.New("engine is nil")
	ErrUnknownEngine  = errors.New("unknown engine kind")
)

// EnginePlaceholder is the user-facing text returned in place of a failed
// engine turn, so the FSM can still return to LISTENING (§7: engine
// failures are logged, not fatal).
const EnginePlaceholder = "Sorry, I had trouble with that. Could you try again?"
