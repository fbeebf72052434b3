package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lokutor-ai/voxfabric/internal/audio"
	"github.com/lokutor-ai/voxfabric/pkg/bus"
)

// audioTopic/controlTopic are the two topics Voice-Output subscribes to
// (§4.6).
const (
	audioTopic   = "voice_output_audio"
	controlTopic = "voice_output_control"
)

// TurnRunner ties the FSM, Session, Engine and reformatter together to
// implement the six-step turn-processing algorithm of §4.4.
type TurnRunner struct {
	logger      Logger
	fsm         *FSM
	session     *Session
	engine      Engine
	reformatter *audio.Reformatter
	publisher   *bus.Publisher
	now         func() time.Time
}

func NewTurnRunner(logger Logger, fsm *FSM, session *Session, engine Engine, reformatter *audio.Reformatter, publisher *bus.Publisher) *TurnRunner {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &TurnRunner{
		logger:      logger,
		fsm:         fsm,
		session:     session,
		engine:      engine,
		reformatter: reformatter,
		publisher:   publisher,
		now:         time.Now,
	}
}

// RunTurn executes the six steps of §4.4's turn processing for one final
// user transcript.
func (r *TurnRunner) RunTurn(ctx context.Context, text string) {
	now := r.now()

	// 1. Append user turn.
	r.session.BeginUserTurn(now, text)
	history := r.session.History()
	// history currently includes the just-appended user turn; the engine
	// wants prior turns plus the new text separately.
	prior := history[:len(history)-1]

	// 2. state = SPEAKING; reset reformatter state.
	r.fsm.ToSpeaking()
	r.reformatter.Reset()

	sttEnd := now
	var llmEnd time.Time
	var ttsFirstByte time.Time
	var gotFirstByte bool

	// 3. Call engine; reformat+publish each chunk.
	response, err := r.engine.Process(ctx, text, prior, func(chunk AudioChunk) error {
		if !gotFirstByte {
			ttsFirstByte = r.now()
			gotFirstByte = true
		}
		src := audio.Format{SampleRate: chunk.SampleRate, Channels: chunk.Channels, Width: chunk.Width}
		reformatted := r.reformatter.Process(chunk.Data, src)
		reformatted = applyGain(reformatted, r.reformatter.TargetFormat().Width, r.session.VoiceGain())
		r.publisher.Publish(audioTopic, reformatted)
		return nil
	})
	llmEnd = r.now()
	if err != nil {
		r.logger.Error("turn: engine failed", "error", err)
		response = EnginePlaceholder
	}

	// 4. Append assistant turn with the full (pre-extraction) response.
	r.session.AppendAssistantTurn(r.now(), response)

	voiceText := extractVoiceText(response)

	// 5. Publish a control message on the control topic.
	r.publishControl(map[string]interface{}{"type": "speak", "text": voiceText})

	// 6. state = LISTENING; last_tts_end_time was stamped by
	// AppendAssistantTurn.
	r.fsm.ToListening()

	r.session.SetLastLatency(LatencyBreakdown{
		UserToSTT:          sttEnd.Sub(now),
		UserToLLM:          llmEnd.Sub(now),
		UserToTTSFirstByte: ttsFirstByte.Sub(now),
		TTSTotal:           r.now().Sub(ttsFirstByte),
	})
}

// HandleReset implements RESET handling: log+clear session, publish a
// stop control message, and return to LISTENING. Sending RESET to
// Speech-Rec is the caller's responsibility (it owns that socket).
func (r *TurnRunner) HandleReset() {
	r.session.Clear()
	r.publishControl(map[string]interface{}{"type": "control", "command": "stop"})
	r.fsm.ToListening()
}

func (r *TurnRunner) publishControl(msg map[string]interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("turn: failed to marshal control message", "error", err)
		return
	}
	r.publisher.Publish(controlTopic, payload)
}

// applyGain scales integer PCM samples by gain in place, widthBytes per
// sample (2 or 4), clamping to the sample width's range.
func applyGain(pcm []byte, widthBytes int, gain float64) []byte {
	if gain == 1.0 {
		return pcm
	}
	switch widthBytes {
	case 2:
		for i := 0; i+1 < len(pcm); i += 2 {
			v := int16(pcm[i]) | int16(pcm[i+1])<<8
			scaled := int32(float64(v) * gain)
			if scaled > 32767 {
				scaled = 32767
			}
			if scaled < -32768 {
				scaled = -32768
			}
			pcm[i] = byte(scaled)
			pcm[i+1] = byte(scaled >> 8)
		}
	case 4:
		for i := 0; i+3 < len(pcm); i += 4 {
			v := int32(pcm[i]) | int32(pcm[i+1])<<8 | int32(pcm[i+2])<<16 | int32(pcm[i+3])<<24
			scaled := int64(float64(v) * gain)
			if scaled > 1<<31-1 {
				scaled = 1<<31 - 1
			}
			if scaled < -(1 << 31) {
				scaled = -(1 << 31)
			}
			pcm[i] = byte(scaled)
			pcm[i+1] = byte(scaled >> 8)
			pcm[i+2] = byte(scaled >> 16)
			pcm[i+3] = byte(scaled >> 24)
		}
	}
	return pcm
}
