// Package wire implements the VadPacket wire format: a length-prefixed,
// schema-encoded frame shared by Voice-Input and Speech-Rec.
package wire

// Status is the VAD status enum carried by a VadPacket that has no audio
// payload.
type Status int32

const (
	StatusUnknown Status = 0
	StatusSilence Status = 1
	StatusSpeechDetected Status = 2
	StatusSpeechHangover Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusSilence:
		return "SILENCE"
	case StatusSpeechDetected:
		return "SPEECH_DETECTED"
	case StatusSpeechHangover:
		return "SPEECH_HANGOVER"
	default:
		return "UNKNOWN"
	}
}

// Audio is the audio-bearing variant of a VadPacket's oneof payload.
type Audio struct {
	SampleRate uint32
	Channels   uint32
	Sequence   uint64
	Data       []byte
}

// VadPacket is the tagged union transmitted between Voice-Input and
// Speech-Rec. Exactly one of Audio or (implicitly) Status is present;
// HasAudio distinguishes the two since Status's zero value is meaningful.
type VadPacket struct {
	TimestampMs uint64
	HasAudio    bool
	Audio       Audio
	Status      Status
}

// NewAudioPacket builds an audio-bearing packet.
func NewAudioPacket(timestampMs uint64, sampleRate, channels uint32, sequence uint64, data []byte) VadPacket {
	return VadPacket{
		TimestampMs: timestampMs,
		HasAudio:    true,
		Audio: Audio{
			SampleRate: sampleRate,
			Channels:   channels,
			Sequence:   sequence,
			Data:       data,
		},
	}
}

// NewStatusPacket builds a status-bearing packet.
func NewStatusPacket(timestampMs uint64, status Status) VadPacket {
	return VadPacket{TimestampMs: timestampMs, HasAudio: false, Status: status}
}
